package api

import (
	"Keepsake/internal/api/handler"

	"github.com/gin-gonic/gin"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	UserHandler   *handler.UserHandler
	CoupleHandler *handler.CoupleHandler
	VaultHandler  *handler.VaultHandler
	MediaHandler  *handler.MediaHandler
	RestHandler   *handler.RestHandler
	WSHandler     *handler.WsHandler
}

// Middlewares 依赖服务实例的中间件
type Middlewares struct {
	Auth  gin.HandlerFunc
	Vault gin.HandlerFunc
}
