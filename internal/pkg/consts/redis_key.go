package consts

const (
	TokenBlacklistKey = "user:token:blacklist:"
	VaultSessionKey   = "vault:session:"
	VaultFailKey      = "vault:fail:"
	MediaPendingKey   = "media:pending"
	RealtimeCoupleKey = "rt:couple:"
)

const (
	MediaCleanupLock = "lock:media:cleanup"
	CoupleJoinLock   = "lock:couple:join:"
)
