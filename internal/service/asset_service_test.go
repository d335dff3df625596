package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-pass/internal/domain"
	"property-pass/internal/service"
	"property-pass/internal/storage"
)

func parInput(custodianID string) service.AssignInput {
	return service.AssignInput{
		CustodianID:    custodianID,
		AssignmentType: domain.AssignmentPAR,
		AssignedDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		PARNumber:      "PAR-2025-001",
	}
}

func TestCreateEquipmentDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)

	created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-1001"))
	require.NoError(t, err)
	base := created.Base()
	assert.NotEmpty(t, base.ID)
	assert.Equal(t, domain.DefaultCondition, base.Condition)
	assert.Equal(t, domain.StatusAvailable, base.Status)
	assert.Empty(t, base.AssignedToUserID)
	assert.Equal(t, admin.Email, base.CreatedBy)
	assert.True(t, base.Consistent())

	logs, err := f.audit.List(ctx, admin, domain.AuditFilter{Action: domain.AuditCreate, ResourceID: base.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ResourceEquipment, logs[0].ResourceType)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	_, user := f.approvedUser(t, "user@agency.test")

	_, err := f.equip.Create(ctx, user, f.newEquipment("PN-1"))
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	blank := f.newEquipment("  ")
	_, err = f.equip.Create(ctx, admin, blank)
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	badType := f.newEquipment("PN-2")
	badType.EquipmentType = "Vehicle"
	_, err = f.equip.Create(ctx, admin, badType)
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	preAssigned := f.newEquipment("PN-3")
	preAssigned.Status = domain.StatusAssigned
	_, err = f.equip.Create(ctx, admin, preAssigned)
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.equip.Create(ctx, admin, f.newEquipment("PN-4"))
	require.NoError(t, err)
	_, err = f.equip.Create(ctx, admin, f.newEquipment("PN-4"))
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestAssignPAR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	custodian, custodianActor := f.approvedUser(t, "holder@agency.test")

	created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-2001"))
	require.NoError(t, err)
	id := created.Base().ID

	got, err := f.equip.Assign(ctx, admin, id, parInput(custodian.ID))
	require.NoError(t, err)
	base := got.Base()
	assert.Equal(t, domain.StatusAssigned, base.Status)
	assert.Equal(t, custodian.ID, base.AssignedToUserID)
	assert.Equal(t, custodian.FullName(), base.AssignedToName)
	assert.Equal(t, domain.AssignmentPAR, base.AssignmentType)
	assert.Equal(t, "PAR-2025-001", base.PARNumber)
	require.NotNil(t, base.AssignedDate)
	assert.True(t, base.Consistent())

	// 保管人自助可见
	mine, err := f.equip.ListByCustodian(ctx, custodianActor, custodian.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	// 可用清单不再包含
	avail, err := f.equip.ListAvailable(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, avail)
}

func TestAssignJobOrderNormalizesPARNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	custodian, _ := f.approvedUser(t, "jo@agency.test")

	created, err := f.furn.Create(ctx, admin, f.newFurniture("PN-3001"))
	require.NoError(t, err)

	in := service.AssignInput{
		CustodianID:    custodian.ID,
		AssignmentType: domain.AssignmentJobOrder,
		AssignedDate:   time.Now(),
		PARNumber:      "should-be-dropped",
	}
	got, err := f.furn.Assign(ctx, admin, created.Base().ID, in)
	require.NoError(t, err)
	assert.Empty(t, got.Base().PARNumber)
	assert.True(t, got.Base().Consistent())
}

func TestAssignPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	custodian, _ := f.approvedUser(t, "ok@agency.test")
	pending := f.registerUser(t, "pending@agency.test")

	created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-4001"))
	require.NoError(t, err)
	id := created.Base().ID

	t.Run("unknown asset", func(t *testing.T) {
		_, err := f.equip.Assign(ctx, admin, "no-such-id", parInput(custodian.ID))
		require.Error(t, err)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("pending custodian ineligible", func(t *testing.T) {
		_, err := f.equip.Assign(ctx, admin, id, parInput(pending.ID))
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("unknown custodian ineligible", func(t *testing.T) {
		_, err := f.equip.Assign(ctx, admin, id, parInput("no-such-user"))
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("PAR requires number", func(t *testing.T) {
		in := parInput(custodian.ID)
		in.PARNumber = "   "
		_, err := f.equip.Assign(ctx, admin, id, in)
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("bad assignment type", func(t *testing.T) {
		in := parInput(custodian.ID)
		in.AssignmentType = "Loan"
		_, err := f.equip.Assign(ctx, admin, id, in)
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("date required", func(t *testing.T) {
		in := parInput(custodian.ID)
		in.AssignedDate = time.Time{}
		_, err := f.equip.Assign(ctx, admin, id, in)
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("already assigned", func(t *testing.T) {
		_, err := f.equip.Assign(ctx, admin, id, parInput(custodian.ID))
		require.NoError(t, err)
		_, err = f.equip.Assign(ctx, admin, id, parInput(custodian.ID))
		require.Error(t, err)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	})

	t.Run("disposed asset", func(t *testing.T) {
		created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-4002"))
		require.NoError(t, err)
		_, err = f.equip.Update(ctx, admin, created.Base().ID, map[string]any{"status": domain.StatusDisposed})
		require.NoError(t, err)
		_, err = f.equip.Assign(ctx, admin, created.Base().ID, parInput(custodian.ID))
		require.Error(t, err)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	})
}

// 两个并发分配恰有一个成功，落败方得到冲突而不是二次改写
func TestAssignConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	a, _ := f.approvedUser(t, "racer-a@agency.test")
	b, _ := f.approvedUser(t, "racer-b@agency.test")

	created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-5001"))
	require.NoError(t, err)
	id := created.Base().ID

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, custodian := range []*domain.User{a, b} {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			_, errs[i] = f.equip.Assign(ctx, admin, id, parInput(uid))
		}(i, custodian.ID)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case domain.KindOf(err) == domain.KindConflict:
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)

	got, err := f.equip.Get(ctx, admin, id)
	require.NoError(t, err)
	assert.True(t, got.Base().Consistent())
	assert.Contains(t, []string{a.ID, b.ID}, got.Base().AssignedToUserID)
}

func TestUnassignLeavesBreadcrumb(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	first, _ := f.approvedUser(t, "first@agency.test")
	second, _ := f.approvedUser(t, "second@agency.test")

	created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-6001"))
	require.NoError(t, err)
	id := created.Base().ID

	_, err = f.equip.Assign(ctx, admin, id, parInput(first.ID))
	require.NoError(t, err)

	got, err := f.equip.Unassign(ctx, admin, id)
	require.NoError(t, err)
	base := got.Base()
	assert.Equal(t, domain.StatusAvailable, base.Status)
	assert.Empty(t, base.AssignedToUserID)
	assert.Empty(t, base.AssignedToName)
	assert.Empty(t, base.PARNumber)
	assert.Empty(t, base.AssignmentType)
	assert.Nil(t, base.AssignedDate)
	assert.Equal(t, first.FullName(), base.PreviousRecipient)
	assert.True(t, base.Consistent())

	// 再分配时不带 previousRecipient，旧痕迹保留
	got, err = f.equip.Assign(ctx, admin, id, parInput(second.ID))
	require.NoError(t, err)
	assert.Equal(t, first.FullName(), got.Base().PreviousRecipient)

	// 单槽痕迹：第二次解除后覆盖为上一任
	got, err = f.equip.Unassign(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, second.FullName(), got.Base().PreviousRecipient)

	// 未分配时解除报冲突
	_, err = f.equip.Unassign(ctx, admin, id)
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestUpdateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	custodian, _ := f.approvedUser(t, "upd@agency.test")

	created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-7001"))
	require.NoError(t, err)
	id := created.Base().ID

	t.Run("plain field merge", func(t *testing.T) {
		got, err := f.equip.Update(ctx, admin, id, map[string]any{
			"brand":     "Lenovo",
			"condition": "Good",
			"remarks":   "re-imaged",
		})
		require.NoError(t, err)
		assert.Equal(t, "Lenovo", got.Brand)
		assert.Equal(t, "Good", got.Base().Condition)
	})

	t.Run("custody columns rejected", func(t *testing.T) {
		for _, col := range []string{"assigned_to_user_id", "assigned_to_name", "par_number", "assignment_type", "previous_recipient", "par_document_ref"} {
			_, err := f.equip.Update(ctx, admin, id, map[string]any{col: "x"})
			require.Error(t, err, col)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err), col)
		}
	})

	t.Run("status Assigned rejected", func(t *testing.T) {
		_, err := f.equip.Update(ctx, admin, id, map[string]any{"status": domain.StatusAssigned})
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("invalid condition rejected", func(t *testing.T) {
		_, err := f.equip.Update(ctx, admin, id, map[string]any{"condition": "Mint"})
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("under repair and back", func(t *testing.T) {
		got, err := f.equip.Update(ctx, admin, id, map[string]any{"status": domain.StatusUnderRepair})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUnderRepair, got.Base().Status)
		_, err = f.equip.Update(ctx, admin, id, map[string]any{"status": domain.StatusAvailable})
		require.NoError(t, err)
	})

	t.Run("assigned asset must be unassigned before status change", func(t *testing.T) {
		_, err := f.equip.Assign(ctx, admin, id, parInput(custodian.ID))
		require.NoError(t, err)
		_, err = f.equip.Update(ctx, admin, id, map[string]any{"status": domain.StatusUnderRepair})
		require.Error(t, err)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
		// 非状态字段仍可改
		_, err = f.equip.Update(ctx, admin, id, map[string]any{"remarks": "screen scratch"})
		require.NoError(t, err)
	})

	t.Run("property number uniqueness", func(t *testing.T) {
		other, err := f.equip.Create(ctx, admin, f.newEquipment("PN-7002"))
		require.NoError(t, err)
		_, err = f.equip.Update(ctx, admin, other.Base().ID, map[string]any{"property_number": "PN-7001"})
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})
}

func TestDeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	custodian, _ := f.approvedUser(t, "del@agency.test")

	assigned, err := f.equip.Create(ctx, admin, f.newEquipment("PN-8001"))
	require.NoError(t, err)
	_, err = f.equip.Assign(ctx, admin, assigned.Base().ID, parInput(custodian.ID))
	require.NoError(t, err)

	err = f.equip.Delete(ctx, admin, assigned.Base().ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	free, err := f.equip.Create(ctx, admin, f.newEquipment("PN-8002"))
	require.NoError(t, err)
	require.NoError(t, f.equip.Delete(ctx, admin, free.Base().ID))

	_, err = f.equip.Get(ctx, admin, free.Base().ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	err = f.equip.Delete(ctx, admin, free.Base().ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestAttachAndFetchDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	custodian, custodianActor := f.approvedUser(t, "doc@agency.test")
	_, stranger := f.approvedUser(t, "other@agency.test")

	created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-9001"))
	require.NoError(t, err)
	id := created.Base().ID

	_, err = f.equip.AttachDocument(ctx, admin, id, "scan.png", strings.NewReader("not a pdf"))
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.equip.FetchDocument(ctx, admin, id)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	got, err := f.equip.AttachDocument(ctx, admin, id, "par-scan.pdf", strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.NotEmpty(t, got.Base().PARDocumentRef)

	_, err = f.equip.Assign(ctx, admin, id, parInput(custodian.ID))
	require.NoError(t, err)

	doc, err := f.equip.FetchDocument(ctx, custodianActor, id)
	require.NoError(t, err)
	doc.Close()

	_, err = f.equip.FetchDocument(ctx, stranger, id)
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	// 文档引用在解除分配后保留
	unassigned, err := f.equip.Unassign(ctx, admin, id)
	require.NoError(t, err)
	assert.NotEmpty(t, unassigned.Base().PARDocumentRef)

	doc, err = f.equip.FetchDocument(ctx, admin, id)
	require.NoError(t, err)
	doc.Close()
}

// 重传 PAR 文档：旧 blob 随被覆盖的引用一并回收，不留孤儿文件
func TestReattachDocumentRemovesOldBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)

	created, err := f.equip.Create(ctx, admin, f.newEquipment("PN-9002"))
	require.NoError(t, err)
	id := created.Base().ID

	first, err := f.equip.AttachDocument(ctx, admin, id, "par.pdf", strings.NewReader("%PDF-1.4 v1"))
	require.NoError(t, err)
	oldRef := first.Base().PARDocumentRef

	second, err := f.equip.AttachDocument(ctx, admin, id, "par.pdf", strings.NewReader("%PDF-1.4 v2"))
	require.NoError(t, err)
	newRef := second.Base().PARDocumentRef
	require.NotEqual(t, oldRef, newRef)

	_, err = f.docs.Open(ctx, oldRef)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	doc, err := f.docs.Open(ctx, newRef)
	require.NoError(t, err)
	doc.Close()
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	custodian, _ := f.approvedUser(t, "stats@agency.test")

	for _, pn := range []string{"PN-A", "PN-B", "PN-C"} {
		_, err := f.equip.Create(ctx, admin, f.newEquipment(pn))
		require.NoError(t, err)
	}
	all, err := f.equip.ListAll(ctx, admin)
	require.NoError(t, err)
	_, err = f.equip.Assign(ctx, admin, all[0].Base().ID, parInput(custodian.ID))
	require.NoError(t, err)
	_, err = f.equip.Update(ctx, admin, all[1].Base().ID, map[string]any{"status": domain.StatusUnderRepair})
	require.NoError(t, err)

	stats, err := f.equip.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Available)
	assert.Equal(t, int64(1), stats.Assigned)
	assert.Equal(t, int64(1), stats.UnderRepair)
	assert.Equal(t, int64(0), stats.Disposed)
}

func TestMyAssetsScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, admin := f.mustAdmin(t)
	a, aActor := f.approvedUser(t, "scope-a@agency.test")
	b, bActor := f.approvedUser(t, "scope-b@agency.test")

	created, err := f.furn.Create(ctx, admin, f.newFurniture("PN-F1"))
	require.NoError(t, err)
	_, err = f.furn.Assign(ctx, admin, created.Base().ID, parInput(a.ID))
	require.NoError(t, err)

	mine, err := f.furn.ListByCustodian(ctx, aActor, a.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = f.furn.ListByCustodian(ctx, bActor, a.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	// admin 可以代查任何人
	theirs, err := f.furn.ListByCustodian(ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}
