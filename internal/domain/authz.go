package domain

// Actor 每个请求由外部认证协作方提供的已验证上下文，
// 禁止进程级单例；审批/在职标记每次请求从台账重新加载
type Actor struct {
	UserID     string
	Email      string
	Role       string
	IsApproved bool
	IsActive   bool
}

func (a Actor) Anonymous() bool { return a.UserID == "" }
func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }

// Anonymous 未认证请求（注册/登录）使用的空上下文
func Anonymous() Actor { return Actor{} }

type Operation string

const (
	OpRegister      Operation = "user.register"
	OpRegisterAdmin Operation = "user.register_admin"
	OpLogin         Operation = "user.login"

	OpListUsers        Operation = "user.list"
	OpListPendingUsers Operation = "user.list_pending"
	OpApproveUser      Operation = "user.approve"
	OpRejectUser       Operation = "user.reject"
	OpDeactivateUser   Operation = "user.deactivate"

	OpCreateAsset    Operation = "asset.create"
	OpUpdateAsset    Operation = "asset.update"
	OpDeleteAsset    Operation = "asset.delete"
	OpGetAsset       Operation = "asset.get"
	OpListAssets     Operation = "asset.list"
	OpListAvailable  Operation = "asset.list_available"
	OpListMyAssets   Operation = "asset.list_mine"
	OpAssignAsset    Operation = "asset.assign"
	OpUnassignAsset  Operation = "asset.unassign"
	OpAttachDocument Operation = "asset.attach_document"
	OpFetchDocument  Operation = "asset.fetch_document"
	OpViewStats      Operation = "asset.stats"

	OpViewAudit Operation = "audit.view"
)

type requirement int

const (
	// allowAnyone 开放操作（注册/登录本身）
	allowAnyone requirement = iota
	// requireAdmin 全部资产写操作与用户管理
	requireAdmin
	// requireApproved 自助读取：已批准且在职的账号（admin 直接放行）
	requireApproved
)

// rules 必须全覆盖：每个 Operation 恰好一条规则，缺失即拒绝
var rules = map[Operation]requirement{
	OpRegister:      allowAnyone,
	OpRegisterAdmin: allowAnyone, // 由 admin key 把关
	OpLogin:         allowAnyone,

	OpListUsers:        requireAdmin,
	OpListPendingUsers: requireAdmin,
	OpApproveUser:      requireAdmin,
	OpRejectUser:       requireAdmin,
	OpDeactivateUser:   requireAdmin,

	OpCreateAsset:    requireAdmin,
	OpUpdateAsset:    requireAdmin,
	OpDeleteAsset:    requireAdmin,
	OpGetAsset:       requireAdmin,
	OpListAssets:     requireAdmin,
	OpListAvailable:  requireAdmin,
	OpListMyAssets:   requireApproved,
	OpAssignAsset:    requireAdmin,
	OpUnassignAsset:  requireAdmin,
	OpAttachDocument: requireAdmin,
	OpFetchDocument:  requireApproved, // 保管人或 admin；归属在 service 里再核对
	OpViewStats:      requireAdmin,

	OpViewAudit: requireAdmin,
}

// Authorize 授权守卫：纯函数、全映射、无默认放行
func Authorize(a Actor, op Operation) error {
	req, ok := rules[op]
	if !ok {
		return Forbidden("operation not permitted")
	}
	switch req {
	case allowAnyone:
		return nil
	case requireAdmin:
		if a.Anonymous() {
			return Unauthorized("authentication required")
		}
		if !a.IsAdmin() {
			return Forbidden("admin role required")
		}
		return nil
	case requireApproved:
		if a.Anonymous() {
			return Unauthorized("authentication required")
		}
		if a.IsAdmin() {
			return nil
		}
		if !a.IsApproved || !a.IsActive {
			return Forbidden("account not approved or inactive")
		}
		return nil
	}
	return Forbidden("operation not permitted")
}

// Operations 供测试校验规则表全覆盖
func Operations() []Operation {
	out := make([]Operation, 0, len(rules))
	for op := range rules {
		out = append(out, op)
	}
	return out
}
