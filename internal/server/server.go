// Package server wires repositories, services and handlers into a gin engine.
package server

import (
	"net/http"

	_ "crm/api/swagger" // swagger docs
	"crm/internal/audit"
	"crm/internal/auth"
	"crm/internal/config"
	"crm/internal/handler"
	"crm/internal/middleware"
	"crm/internal/notify"
	"crm/internal/repository"
	"crm/internal/service"
	"crm/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// App is the assembled API. Close must be called on shutdown so queued
// audit entries are written.
type App struct {
	Router   *gin.Engine
	Roles    service.RoleService
	Tokens   *auth.TokenService
	Recorder *audit.Recorder
	Hub      *websocket.Hub
}

// New builds the dependency graph (Repository -> Service -> Handler) and the router.
func New(cfg *config.Config, db *gorm.DB, notifier notify.Notifier) *App {
	hub := websocket.NewHub()
	go hub.Run()

	txm := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	quotationRepo := repository.NewQuotationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	recorder := audit.NewRecorder(auditRepo, hub, audit.Options{
		QueueSize:   cfg.Audit.QueueSize,
		MaxAttempts: cfg.Audit.MaxAttempts,
		RetryDelay:  cfg.Audit.RetryDelay,
	})
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	authService := service.NewAuthService(userRepo, roleRepo, txm, tokens, recorder, cfg.Seed.DefaultRole)
	userService := service.NewUserService(userRepo, roleRepo, txm, recorder)
	roleService := service.NewRoleService(roleRepo, userRepo, txm, recorder)
	leadService := service.NewLeadService(leadRepo, quotationRepo, txm, recorder)
	quotationService := service.NewQuotationService(quotationRepo, leadRepo, txm, recorder, notifier, cfg.Quotation.ApproverRoles)
	auditService := service.NewAuditService(auditRepo, userRepo)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	handler.UseJSONFieldNames()

	router := gin.New()
	router.Use(gin.Logger(), middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws/audit-logs", func(c *gin.Context) {
		websocket.ServeWs(hub, c, tokens)
	})

	api := router.Group("")
	api.Use(middleware.Authenticate(tokens))
	handler.NewAuthHandler(authService).RegisterRoutes(api)
	handler.NewUserHandler(userService).RegisterRoutes(api)
	handler.NewRoleHandler(roleService).RegisterRoutes(api)
	handler.NewLeadHandler(leadService).RegisterRoutes(api)
	handler.NewQuotationHandler(quotationService).RegisterRoutes(api)
	handler.NewAuditHandler(auditService).RegisterRoutes(api)

	return &App{
		Router:   router,
		Roles:    roleService,
		Tokens:   tokens,
		Recorder: recorder,
		Hub:      hub,
	}
}

// Close drains the audit queue and disconnects feed clients.
func (a *App) Close() {
	a.Recorder.Close()
	a.Hub.Stop()
}
