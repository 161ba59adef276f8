package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/mine-game/internal/config"
	"github.com/wfunc/mine-game/internal/middleware"
	"github.com/wfunc/mine-game/internal/repository"
	"github.com/wfunc/mine-game/internal/service"
	"github.com/wfunc/mine-game/internal/session"
	"github.com/wfunc/mine-game/internal/utils"
	"github.com/wfunc/mine-game/internal/websocket"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	manager        *session.Manager
	hub            *websocket.Hub
	sessionHandler *SessionHandler
	adminHandler   *AdminHandler
	wsHandler      *websocket.Handler
	adminAuth      *middleware.AdminAuth
	cfg            *config.Config
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, cfg *config.Config, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())

	// 会话管理器
	manager := session.NewManager(&session.Config{
		Repo:   repository.NewSessionRepository(db),
		Logger: log.Named("session"),
		TTL:    cfg.Session.TTL,
	})

	// WebSocket推送
	var hub *websocket.Hub
	var wsHandler *websocket.Handler
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(log.Named("websocket"))
		wsHandler = websocket.NewHandler(hub, &cfg.WebSocket, log.Named("websocket"))
		go hub.Run()
	}

	// 管理端服务
	jwtManager := utils.NewJWTManager(cfg.Admin.JWTSecret, cfg.Admin.TokenExpiry)
	adminService := service.NewAdminService(manager, jwtManager, &cfg.Admin, log.Named("admin"))

	router := &Router{
		engine:         engine,
		db:             db,
		manager:        manager,
		hub:            hub,
		sessionHandler: NewSessionHandler(manager, hub, &cfg.Game, log.Named("api")),
		adminHandler:   NewAdminHandler(adminService, hub),
		wsHandler:      wsHandler,
		adminAuth:      middleware.NewAdminAuth(jwtManager),
		cfg:            cfg,
		log:            log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		// 玩家会话路由（凭游戏ID和令牌访问，无需登录）
		sess := v1.Group("/session")
		{
			sess.POST("/claim", r.sessionHandler.Claim)
			sess.POST("/validate", r.sessionHandler.Validate)
			sess.POST("/heartbeat", r.sessionHandler.Heartbeat)
			sess.POST("/complete", r.sessionHandler.Complete)
			sess.POST("/board", r.sessionHandler.SyncBoard)
			sess.GET("/status", r.sessionHandler.Status)
			sess.POST("/check", r.sessionHandler.Check)
		}

		// 管理端路由
		admin := v1.Group("/admin")
		{
			admin.POST("/login", r.adminHandler.Login)

			authorized := admin.Group("")
			authorized.Use(r.adminAuth.RequireAdmin())
			{
				authorized.POST("/ids", r.adminHandler.IssueID)
				authorized.GET("/ids", r.adminHandler.List)
				authorized.GET("/ids/:id", r.adminHandler.CheckStatus)
				authorized.DELETE("/ids/:id", r.adminHandler.DeleteID)
			}
		}
	}

	// WebSocket推送通道
	if r.wsHandler != nil {
		r.engine.GET(r.cfg.WebSocket.Path, r.wsHandler.Serve)
	}

	// API文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
