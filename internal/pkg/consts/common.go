package consts

const (
	MimePrefixImage = "image"
	MimePrefixVideo = "video"
)

const (
	// DayLayout 按天相册的日期格式
	DayLayout = "2006-01-02"
	// ThumbPrefix 缩略图对象前缀
	ThumbPrefix = "thumbs/"
)

const (
	MsgTypeText  = 1
	MsgTypeImage = 2
)

const (
	ContextUserID   = "user_id"
	ContextCoupleID = "couple_id"
	ContextToken    = "token"
	// ContextVaultUntil 私密相册解锁截止时间
	ContextVaultUntil = "vault_until"
	HeaderVault       = "X-Vault-Token"
)
