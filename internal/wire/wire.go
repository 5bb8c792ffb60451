package wire

import (
	"Keepsake/internal/api"
	"Keepsake/internal/api/config"
	"Keepsake/internal/api/handler"
	"Keepsake/internal/api/middleware"
	"Keepsake/internal/job"
	"Keepsake/internal/pkg/cron"
	"Keepsake/internal/pkg/kafka"
	"Keepsake/internal/pkg/minio"
	kmongo "Keepsake/internal/pkg/mongo"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/security"
	"Keepsake/internal/repository"
	"Keepsake/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	KafkaManager *kafka.ConsumerManager
	CronMgr      *cron.Manager
	// closers 带后台工作池的服务，退出时依次关闭
	closers []func()
}

// Close 等待后台工作池退出
func (a *ApplicationContainer) Close() {
	for _, c := range a.closers {
		c()
	}
}

func BuildApplication(db *gorm.DB, mongoDB *mongo.Database, cfg *config.Config) (*ApplicationContainer, error) {
	userRepo := repository.NewUserRepo(db)
	coupleRepo := repository.NewCoupleRepo(db)
	imageRepo := repository.NewImageRepo(db)
	commentRepo := repository.NewCommentRepo(db)
	reactionRepo := repository.NewReactionRepo(db)
	convRepo := repository.NewConversationRepo(db)
	messageRepo := kmongo.NewMessageRepo(mongoDB)

	issuer := security.NewTokenIssuer(cfg.JWT)
	publisher := realtime.NewRedisPublisher("api")

	userService := service.NewUserService(userRepo, issuer)
	coupleService := service.NewCoupleService(coupleRepo, userRepo, userService)
	vaultService := service.NewVaultService(coupleRepo, cfg.Vault)
	mediaService := service.NewMediaService(minio.NewStore(), cfg.Media)
	imageService := service.NewImageService(imageRepo, mediaService, publisher)
	imService := service.NewIMService(convRepo, messageRepo, publisher)
	restService := service.NewRestService(
		imageService,
		service.NewCommentService(commentRepo, imageRepo, publisher),
		service.NewReactionService(reactionRepo, imageRepo, publisher),
		imService,
	)

	handlers := &api.HandlersGroup{
		UserHandler:   handler.NewUserHandler(userService),
		CoupleHandler: handler.NewCoupleHandler(coupleService),
		VaultHandler:  handler.NewVaultHandler(vaultService),
		MediaHandler:  handler.NewMediaHandler(mediaService),
		RestHandler:   handler.NewRestHandler(restService, imageService),
		WSHandler:     handler.NewWsHandler(restService, vaultService, cfg.Realtime),
	}
	mws := &api.Middlewares{
		Auth:  middleware.AuthMiddleware(issuer),
		Vault: middleware.VaultMiddleware(vaultService),
	}

	router := api.SetupRouter(handlers, mws)

	kafkaMgr, err := kafka.NewConsumerManager(cfg, realtime.NewRedisPublisher("cdc"))
	if err != nil {
		return nil, err
	}

	cronMgr := cron.NewCronManager(job.NewMediaCleanupJob(mediaService))

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		KafkaManager: kafkaMgr,
		CronMgr:      cronMgr,
		closers:      []func(){imageService.Close, imService.Close},
	}, nil
}
