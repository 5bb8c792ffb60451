package middleware

import (
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/service"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

// VaultMiddleware 解析私密相册解锁凭证，凭证无效时按未解锁处理
func VaultMiddleware(vaultSvc service.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(consts.HeaderVault)
		if token == "" {
			c.Next()
			return
		}
		until, err := vaultSvc.Session(c.Request.Context(), c.GetUint64(consts.ContextCoupleID), token)
		if err != nil {
			log.WarnContext(c.Request.Context(), "vault session lookup failed", "err", err)
		}
		if !until.IsZero() {
			c.Set(consts.ContextVaultUntil, until)
		}
		c.Next()
	}
}
