package app

import (
	"context"
	"fmt"
	"time"

	"library_backend/config"
	"library_backend/db"
	"library_backend/logging"
	"library_backend/service"
	"library_backend/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    redis.UniversalClient
	Config config.Config
	Log    logging.Logger

	Repo     *db.Repo
	Catalog  *service.CatalogService
	Identity *service.IdentityService
	Loans    *service.LoanService

	appSess *session.AppSessionStore
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

// Open connects the store and Redis, migrates the schema and builds the App.
func Open(cfg config.Config, log logging.Logger) (*App, error) {
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn); err != nil {
		_ = db.Close(conn)
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		_ = db.Close(conn)
		return nil, fmt.Errorf("redis: %w", err)
	}
	return New(cfg, conn, rdb, log), nil
}

// New wires services and middleware over already-open connections.
func New(cfg config.Config, conn *gorm.DB, rdb redis.UniversalClient, log logging.Logger) *App {
	repo := db.NewRepo(conn)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), Deadline(cfg.RequestTimeout))
	useCORS(r)

	return &App{
		Router: r, DB: conn, RDB: rdb, Config: cfg, Log: log,
		Repo:     repo,
		Catalog:  service.NewCatalogService(repo, log),
		Identity: service.NewIdentityService(repo, log),
		Loans:    service.NewLoanService(repo, log, cfg.Loans),
		appSess:  session.NewAppSessionStore(rdb, cfg.SessionTTL),
	}
}

func (a *App) Close() {
	_ = a.RDB.Close()
	_ = db.Close(a.DB)
}
