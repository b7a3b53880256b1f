// Package main runs the auth and authorization core for the municipal
// platform: token issuance, session ledger and RBAC enforcement.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civicore/backend/config"
	"github.com/civicore/backend/internal/audit"
	"github.com/civicore/backend/internal/auth"
	"github.com/civicore/backend/internal/middleware"
	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/internal/rbac"
	"github.com/civicore/backend/internal/sessions"
	"github.com/civicore/backend/internal/tenants"
	"github.com/civicore/backend/internal/users"
	"github.com/civicore/backend/pkg/database"
	"github.com/civicore/backend/pkg/redis"
	"github.com/civicore/backend/pkg/response"
)

// sessionRetention keeps expired session rows around for audit
// correlation before the cleaner removes them.
const sessionRetention = 30 * 24 * time.Hour

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	sink := audit.NewRedisSink(rdb.Client, logger)

	// Token service and session ledger
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpire)
	sessionRepo := sessions.NewRepository(pool)
	ledger := sessions.NewLedger(sessionRepo, cfg.JWT.RefreshExpire)

	// Stores
	userRepo := users.NewRepository(pool)
	tenantRepo := tenants.NewRepository(pool)
	rbacRepo := rbac.NewRepository(pool)

	// RBAC resolution with its explicitly constructed cache
	grantCache := rbac.NewRedisGrantCache(rdb.Client, cfg.Auth.PermissionCacheTTL, logger)
	resolver := rbac.NewResolver(rbacRepo, grantCache, sink, logger)
	guards := middleware.NewGuards(resolver, sink)

	hasher := auth.BcryptHasher{Cost: cfg.Auth.BcryptCost}
	authService := auth.NewService(userRepo, tenantRepo, ledger, jwtService, hasher, sink, logger)

	authHandler := auth.NewHandler(authService, logger)
	userHandler := users.NewHandler(userRepo, resolver, sink, logger)
	tenantHandler := tenants.NewHandler(tenantRepo, logger)
	rbacHandler := rbac.NewHandler(resolver, userRepo, logger)

	if err := bootstrapSuperAdmin(ctx, cfg, userRepo, hasher, logger); err != nil {
		logger.Fatal("bootstrap super admin", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Protected API
	api := router.Group("")
	api.Use(auth.Middleware(jwtService, userRepo, ledger, logger))
	{
		api.POST("/auth/logout", authHandler.Logout)
		api.POST("/auth/logout-all", authHandler.LogoutAll)
		api.GET("/auth/me", authHandler.Me)

		// Tenants
		api.GET("/tenants", guards.RequireRole(models.RoleSuperAdmin), tenantHandler.List)
		api.POST("/tenants", guards.RequireRole(models.RoleSuperAdmin), tenantHandler.Create)
		api.GET("/tenants/:id", guards.RequireTenantAccess("id"), tenantHandler.Get)
		api.PATCH("/tenants/:id/status", guards.RequireRole(models.RoleSuperAdmin), tenantHandler.UpdateStatus)
		api.GET("/tenants/:id/users",
			guards.RequireTenantAccess("id"),
			guards.RequireRole(models.RoleManager),
			userHandler.ListByTenant)

		// Users
		api.GET("/users/:id", userHandler.Get)
		api.PATCH("/users/me", userHandler.UpdateMe)
		api.PATCH("/users/:id/status", guards.RequireRole(models.RoleManager), userHandler.UpdateStatus)
		api.PATCH("/users/:id/role", guards.RequireRole(models.RoleAdmin), userHandler.UpdateRole)

		// Permissions
		api.GET("/permissions", guards.RequireRole(models.RoleAdmin), rbacHandler.ListCatalog)
		api.GET("/users/:id/permissions", guards.RequirePermission(rbac.PermPermissionsManage), rbacHandler.ListGrants)
		api.POST("/users/:id/permissions", guards.RequirePermission(rbac.PermPermissionsManage), rbacHandler.Grant)
		api.DELETE("/users/:id/permissions/:code", guards.RequirePermission(rbac.PermPermissionsManage), rbacHandler.RevokeGrant)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Periodic cleanup of long-expired session rows
	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	go cleanSessions(cleanCtx, sessionRepo, logger)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cleanCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// bootstrapSuperAdmin seeds the first super_admin account from env.
func bootstrapSuperAdmin(ctx context.Context, cfg *config.Config, repo *users.Repository, hasher auth.BcryptHasher, logger *zap.Logger) error {
	email := cfg.Auth.BootstrapAdminEmail
	password := cfg.Auth.BootstrapAdminPassword
	if email == "" || password == "" {
		return nil
	}
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, users.ErrNotFound) {
		return err
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	admin := &models.User{
		ID:       uuid.New(),
		Email:    email,
		Password: hash,
		FullName: "Platform Administrator",
		Role:     models.RoleSuperAdmin,
		Status:   models.UserActive,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return err
	}
	logger.Info("super admin bootstrapped", zap.String("email", email))
	return nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

func cleanSessions(ctx context.Context, repo *sessions.Repository, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, sessionRetention)
			if err != nil {
				logger.Warn("session cleanup", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
