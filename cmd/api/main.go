package main

import (
	"context"
	"os"

	_ "backend/api/swagger" // swagger docs
	"backend/internal/database"
	"backend/internal/handler"
	"backend/internal/logger"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Farm Office API
// @version         1.0
// @description     Back office for farm operations: invoice registration, rule-based classification, review workflow, farms, and deliveries.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		// Environment variables may be provided by the host instead
	}

	log, err := logger.Init(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "postgres")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL")

	// Permission middleware needs DB access for role lookups
	middleware.InitPermissionMiddleware(db)

	// WebSocket hub for invoice event notifications
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	invoiceAuditRepo := repository.NewInvoiceAuditRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	farmRepo := repository.NewFarmRepository(db)
	taxEntityRepo := repository.NewTaxEntityRepository(db)
	feedRepo := repository.NewFeedDeliveryRepository(db)
	gasRepo := repository.NewGasDeliveryRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	// Services
	userService := service.NewUserService(userRepo, db)
	roleService := service.NewRoleService(roleRepo, txManager)
	ruleService := service.NewRuleService(ruleRepo, auditRepo, txManager)
	invoiceService := service.NewInvoiceService(invoiceRepo, invoiceAuditRepo, auditRepo, ruleService, txManager, wsHub)
	farmService := service.NewFarmService(farmRepo, taxEntityRepo, auditRepo, txManager)
	deliveryService := service.NewDeliveryService(feedRepo, gasRepo, farmRepo, auditRepo, txManager)
	statisticsService := service.NewStatisticsService(statsRepo)
	auditService := service.NewAuditService(auditRepo)

	// Seed built-in roles, permission catalog and the first admin account
	if err := roleService.SeedDefaultRolesAndPermissions(context.Background()); err != nil {
		log.Warn("failed to seed roles and permissions", zap.Error(err))
	}
	if err := userService.EnsureAdminUser(context.Background()); err != nil {
		log.Warn("failed to bootstrap admin user", zap.Error(err))
	}

	// Handlers
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleService)
	ruleHandler := handler.NewRuleHandler(ruleService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	farmHandler := handler.NewFarmHandler(farmService)
	deliveryHandler := handler.NewDeliveryHandler(deliveryService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)
	auditHandler := handler.NewAuditHandler(auditService)

	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// API routing
	root := router.Group("")
	userHandler.RegisterRoutes(root)
	roleHandler.RegisterRoutes(root)
	ruleHandler.RegisterRoutes(root)
	invoiceHandler.RegisterRoutes(root)
	farmHandler.RegisterRoutes(root)
	deliveryHandler.RegisterRoutes(root)
	statisticsHandler.RegisterRoutes(root)
	auditHandler.RegisterRoutes(root)

	port := envOr("PORT", "8080")

	log.Info("server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
