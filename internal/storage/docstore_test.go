package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s := NewFSStore(t.TempDir())
	ctx := context.Background()

	ref, err := s.Save(ctx, "equipment", "PN-1001.pdf", strings.NewReader("%PDF-1.4 payload"))
	require.NoError(t, err)
	assert.NotContains(t, ref, "\\")
	assert.True(t, strings.HasPrefix(ref, "equipment/"))
	assert.True(t, strings.HasSuffix(ref, ".pdf"))

	doc, err := s.Open(ctx, ref)
	require.NoError(t, err)
	defer doc.Close()
	b, err := io.ReadAll(doc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 payload", string(b))
	assert.Equal(t, int64(len(b)), doc.Size)
}

func TestFSStoreSizeLimit(t *testing.T) {
	s := NewFSStore(t.TempDir())
	ctx := context.Background()

	big := bytes.Repeat([]byte("a"), MaxDocumentSize+1)
	_, err := s.Save(ctx, "equipment", "big.pdf", bytes.NewReader(big))
	require.ErrorIs(t, err, ErrTooLarge)

	// 正好到上限的文件可以保存
	exact := bytes.Repeat([]byte("a"), MaxDocumentSize)
	ref, err := s.Save(ctx, "equipment", "exact.pdf", bytes.NewReader(exact))
	require.NoError(t, err)
	doc, err := s.Open(ctx, ref)
	require.NoError(t, err)
	defer doc.Close()
	assert.Equal(t, int64(MaxDocumentSize), doc.Size)
}

func TestFSStoreRefSafety(t *testing.T) {
	s := NewFSStore(t.TempDir())
	ctx := context.Background()

	for _, ref := range []string{"", "../etc/passwd", "/etc/passwd", ".."} {
		_, err := s.Open(ctx, ref)
		assert.Error(t, err, ref)
	}

	// 目录名里的分隔符被清洗，不会逃出根目录
	ref, err := s.Save(ctx, "../sneaky", "f.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotContains(t, ref, "../")
	doc, err := s.Open(ctx, ref)
	require.NoError(t, err)
	doc.Close()
}

func TestFSStoreRemove(t *testing.T) {
	s := NewFSStore(t.TempDir())
	ctx := context.Background()

	ref, err := s.Save(ctx, "furniture", "PN-2.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, ref))

	_, err = s.Open(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)

	// 幂等：再删不报错
	assert.NoError(t, s.Remove(ctx, ref))
}

func TestFSStoreStampedNamesDoNotCollide(t *testing.T) {
	s := NewFSStore(t.TempDir())
	ctx := context.Background()

	// 同一秒内重传同名文件也要得到不同 ref，互不覆盖
	ref1, err := s.Save(ctx, "equipment", "PN-3.pdf", strings.NewReader("first"))
	require.NoError(t, err)
	ref2, err := s.Save(ctx, "equipment", "PN-3.pdf", strings.NewReader("second"))
	require.NoError(t, err)
	require.NotEqual(t, ref1, ref2)

	for ref, want := range map[string]string{ref1: "first", ref2: "second"} {
		doc, err := s.Open(ctx, ref)
		require.NoError(t, err)
		b, _ := io.ReadAll(doc)
		doc.Close()
		assert.Equal(t, want, string(b))
	}
}
