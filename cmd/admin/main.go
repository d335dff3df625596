package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"property-pass/internal/core/auth"
	"property-pass/internal/core/cache"
	"property-pass/internal/core/config"
	"property-pass/internal/core/database"
	"property-pass/internal/core/logger"
	"property-pass/internal/core/server"
	"property-pass/internal/domain"
	"property-pass/internal/feature/account"
	"property-pass/internal/feature/audit"
	"property-pass/internal/feature/equipment"
	"property-pass/internal/feature/furniture"
	"property-pass/internal/repo"
	"property-pass/internal/service"
	"property-pass/internal/storage"
	"property-pass/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := newLogger(cfg)
	defer cleanup()

	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(
			&domain.User{},
			&domain.Equipment{},
			&domain.Furniture{},
			&domain.AuditLog{},
		); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	userRepo := repo.NewUserRepo(db)
	registerModules(cfg, log, db, jwter, userRepo)

	r := router.NewAdminEngine(log, jwter, userRepo)

	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, r, 5*time.Second, 30*time.Second, 60*time.Second)

	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("admin api start FAILED", zap.Error(err))
		}
	}()
	log.Info("admin api started SUCCESS")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("admin api stopped gracefully")
}

// registerModules 管理端：用户审批 + 两类资产登记/保管流转 + 审计查询
func registerModules(cfg *config.Config, log *zap.Logger, db *gorm.DB, jwter *auth.JWTer, userRepo domain.UserRepository) {
	auditRepo := repo.NewAuditRepo(db)
	auditSvc := service.NewAuditService(auditRepo, log)
	userSvc := service.NewUserService(userRepo, auditSvc, cfg.Security.AdminRegistrationKey)

	var cch *cache.Cache
	if cfg.Redis.Addr != "" {
		cch = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	docs := storage.NewFSStore(cfg.Docs.Dir)

	equipRepo := repo.NewAssetRepo(db, func() *domain.Equipment { return &domain.Equipment{} })
	equipSvc := service.NewAssetService(domain.AssetEquipment, equipRepo, userRepo, docs, auditSvc, cch, equipment.Validate)

	furnRepo := repo.NewAssetRepo(db, func() *domain.Furniture { return &domain.Furniture{} })
	furnSvc := service.NewAssetService(domain.AssetFurniture, furnRepo, userRepo, docs, auditSvc, cch, furniture.Validate)

	router.Register(account.NewModule(userSvc, jwter))
	router.Register(equipment.NewModule(equipSvc))
	router.Register(furniture.NewModule(furnSvc))
	router.Register(audit.NewModule(auditSvc))
}

func newLogger(cfg *config.Config) (*zap.Logger, func()) {
	if cfg.Log.File != "" {
		return logger.NewWithRotate(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File, 100, 7, 30, true)
	}
	return logger.New(cfg.Log.Level, cfg.Log.JSON)
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
