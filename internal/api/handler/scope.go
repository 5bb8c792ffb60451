package handler

import (
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/service"
	"time"

	"github.com/gin-gonic/gin"
)

// scopeOf 由鉴权与私密相册中间件注入的身份
func scopeOf(c *gin.Context) service.Scope {
	scope := service.Scope{
		UserID:   c.GetUint64(consts.ContextUserID),
		CoupleID: c.GetUint64(consts.ContextCoupleID),
	}
	if until, ok := c.Get(consts.ContextVaultUntil); ok {
		scope.VaultUntil, _ = until.(time.Time)
	}
	return scope
}

// bind 解析并校验请求体
func bind(c *gin.Context, v any) error {
	return c.ShouldBindJSON(v)
}
