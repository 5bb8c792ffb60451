package api

import (
	"Keepsake/internal/api/middleware"
	"Keepsake/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(group *HandlersGroup, mw *Middlewares) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		userGroup := apiGroup.Group("/user")
		{
			// 无需登录即可访问的接口
			userGroup.POST("/login", group.UserHandler.Login)
			userGroup.POST("/register", group.UserHandler.Register)

			authGroup := userGroup.Group("")
			authGroup.Use(mw.Auth)
			{
				authGroup.POST("/logout", group.UserHandler.Logout)
				authGroup.GET("/me", group.UserHandler.GetUserInfo)
				authGroup.PUT("/info", group.UserHandler.UpdateProfile)
				authGroup.POST("/token", group.UserHandler.RefreshToken)
			}
		}

		coupleGroup := apiGroup.Group("/couple")
		coupleGroup.Use(mw.Auth)
		{
			coupleGroup.GET("", group.CoupleHandler.GetCouple)
			coupleGroup.POST("/invite", group.CoupleHandler.CreateInvite)
			coupleGroup.POST("/join", group.CoupleHandler.Join)
		}

		vaultGroup := apiGroup.Group("/vault")
		vaultGroup.Use(mw.Auth)
		{
			vaultGroup.PUT("/password", group.VaultHandler.SetPassword)
			vaultGroup.POST("/unlock", group.VaultHandler.Unlock)
			vaultGroup.POST("/lock", group.VaultHandler.Lock)
		}

		mediaGroup := apiGroup.Group("/media")
		mediaGroup.Use(mw.Auth)
		{
			mediaGroup.POST("/sign", group.MediaHandler.Sign)
		}

		restGroup := apiGroup.Group("/rest")
		restGroup.Use(mw.Auth, mw.Vault)
		{
			restGroup.GET("/:table", group.RestHandler.Select)
			restGroup.POST("/:table", group.RestHandler.Insert)
			restGroup.PATCH("/:table", group.RestHandler.Update)
			restGroup.DELETE("/:table", group.RestHandler.Delete)
		}

		apiGroup.GET("/images/days", mw.Auth, mw.Vault, group.RestHandler.Days)
		apiGroup.GET("/realtime", mw.Auth, group.WSHandler.Connect)
	}

	return r
}
