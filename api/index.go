package handler

import (
	"net/http"
	"sync"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/logging"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/server"
	"timetrack-backend/pkg/utils"
)

// The router is rebuilt only when the pooled database connection changes.
var (
	routerMu     sync.Mutex
	cachedRouter http.Handler
	routerDB     database.DatabaseInterface
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg := config.GetCached()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		utils.WriteError(w, r, apperr.Internal("configuration error", err), cfg.IsDevelopment())
		return
	}

	router, err := routerFor(r, cfg)
	if err != nil {
		utils.WriteError(w, r, apperr.Internal("database unavailable", err), cfg.IsDevelopment())
		return
	}
	router.ServeHTTP(w, r)
}

func routerFor(r *http.Request, cfg *config.Config) (http.Handler, error) {
	log := logging.New(cfg)

	// 获取数据库连接（连接池管理，无需手动关闭）
	db, err := database.GetDatabase(r.Context(), database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		Debug:       cfg.Debug,
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open database")
		return nil, err
	}

	routerMu.Lock()
	defer routerMu.Unlock()
	if cachedRouter != nil && routerDB == db {
		return cachedRouter, nil
	}

	if err := permissions.Bootstrap(r.Context(), db, log); err != nil {
		log.Error().Err(err).Msg("permission catalog is invalid")
		return nil, err
	}
	cachedRouter = server.NewRouter(server.Deps{Config: cfg, DB: db, Log: log})
	routerDB = db
	return cachedRouter, nil
}
