// Package app wires the arena server: game data, the session service, the
// background tickers and the HTTP routes.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/arenacore/api/rest"
	"github.com/kasuganosora/arenacore/api/sse"
	apiws "github.com/kasuganosora/arenacore/api/ws"
	"github.com/kasuganosora/arenacore/audit"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/config"
	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/fx"
	"github.com/kasuganosora/arenacore/game/player"
	"github.com/kasuganosora/arenacore/game/script"
	"github.com/kasuganosora/arenacore/game/world"
	mw "github.com/kasuganosora/arenacore/middleware"
	"github.com/kasuganosora/arenacore/resource"
	"github.com/kasuganosora/arenacore/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// App holds every wired subsystem.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Cache     cache.Cache
	PubSub    cache.PubSub
	Logger    *zap.Logger
	Resources *resource.ResourceLoader
	FX        *fx.Center
	Audit     *audit.Service
	Enemies   *world.Registry
	Spawner   *world.Spawner
	Store     *player.Store
	Sessions  *player.SessionManager
	Service   *player.Service
	Scheduler *scheduler.Scheduler
	Engine    *gin.Engine
}

// Formulas returns the skill formula evaluator selected by game.formula_engine.
func Formulas(cfg *config.Config, logger *zap.Logger) (combat.Evaluator, error) {
	switch cfg.Game.FormulaEngine {
	case config.FormulaBuiltin, "":
		return combat.Builtin, nil
	case config.FormulaJS:
		return script.NewFormulaEngine(cfg.Script.VMPoolSize, cfg.Script.Timeout, logger), nil
	}
	return nil, fmt.Errorf("config: unknown game.formula_engine %q", cfg.Game.FormulaEngine)
}

// New loads the game data and wires the server on top of an open database
// and cache. The database must already be migrated.
func New(cfg *config.Config, db *gorm.DB, c cache.Cache, pubsub cache.PubSub, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, DB: db, Cache: c, PubSub: pubsub, Logger: logger}

	// ---- Game data ----
	formulas, err := Formulas(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Resources = resource.NewLoader(cfg.Game.DataDir)
	a.Resources.Formulas = formulas
	if err := a.Resources.Load(); err != nil {
		return nil, fmt.Errorf("game data: %w", err)
	}
	logger.Info("Game data loaded",
		zap.Int("skills", len(a.Resources.Skills)),
		zap.Int("items", len(a.Resources.Items.Templates)),
		zap.Int("enemies", len(a.Resources.Enemies.Templates)),
		zap.Strings("sources", a.Resources.Sources),
		zap.String("formula_engine", cfg.Game.FormulaEngine))

	// ---- Effects + Audit ----
	a.FX = fx.NewCenter(logger)
	if pubsub != nil {
		a.FX.Register(fx.Any, 0, "pubsub", fx.PubSubBridge(pubsub))
	}
	a.Audit = audit.New(db, logger)
	a.Audit.Attach(a.FX)

	// ---- Arena ----
	a.Enemies = world.NewRegistry()
	a.Spawner = world.NewSpawner(a.Enemies, a.Resources.Enemies.Templates, a.Resources.Enemies.Spawns, logger)
	logger.Info("Enemies spawned", zap.Int("count", a.Spawner.SpawnAll()))

	resolver := combat.NewResolver(a.FX)
	resolver.KillXP = cfg.Game.KillXP
	arena := &player.Arena{
		Enemies:  a.Enemies,
		Items:    a.Resources.ItemCatalog(),
		Resolver: resolver,
		FX:       a.FX,
		Formulas: formulas,
	}

	a.Store = player.NewStore(db, c, a.Resources.Skills, logger)
	a.Sessions = player.NewSessionManager(logger)
	a.Service = player.NewService(a.Store, a.Sessions, arena, c, logger)

	a.Scheduler = scheduler.New(logger)
	a.startTickers()
	a.Engine = a.routes()
	return a, nil
}

func (a *App) every(name string, interval time.Duration, fn scheduler.TaskFn) {
	if interval <= 0 {
		a.Logger.Warn("scheduler task disabled", zap.String("name", name))
		return
	}
	a.Scheduler.AddTicker(name, interval, fn)
}

func (a *App) startTickers() {
	g := a.Config.Game
	a.every("frame", g.Tick(), func(ctx context.Context) {
		a.Sessions.TickAll(ctx, time.Now())
	})
	a.every("auto_save", time.Duration(g.SaveIntervalS)*time.Second, func(ctx context.Context) {
		if n := a.Service.SaveDirty(ctx); n > 0 {
			a.Logger.Debug("auto_save", zap.Int("saved", n))
		}
	})
	a.every("respawn", time.Duration(g.RespawnCheckS)*time.Second, func(context.Context) {
		a.Spawner.CheckRespawns(time.Now())
	})
	rebuild := func(ctx context.Context) {
		if _, err := a.Store.RebuildRanking(ctx); err != nil {
			a.Logger.Warn("ranking rebuild failed", zap.Error(err))
		}
	}
	a.every("ranking", time.Duration(g.RankingRefreshS)*time.Second, rebuild)
	// Tickers first fire after one interval; warm the leaderboard now.
	a.Scheduler.AddDelay("ranking_warmup", 0, rebuild)
}

func (a *App) routes() *gin.Engine {
	cfg, logger := a.Config, a.Logger

	// ---- WS Router ----
	wsRouter := apiws.NewRouter(logger)
	apiws.NewSessionHandlers(logger).RegisterHandlers(wsRouter)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": a.Sessions.Count()})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(a.DB, a.Cache, cfg.Security, a.Sessions)
	charH := apirest.NewCharacterHandler(a.DB, a.Service, logger)
	sessH := apirest.NewSessionHandler(a.Service, a.Cache, cfg.Security, a.Audit, logger)
	rankH := apirest.NewRankingHandler(a.Store, logger)
	adminH := apirest.NewAdminHandler(a.DB, a.Service, a.Enemies, a.Scheduler, a.Audit, logger)
	sseH := sse.NewHandler(a.PubSub, a.Sessions, logger)

	auth := mw.Auth(cfg.Security, a.Cache)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)

		charsG := api.Group("/characters", auth)
		charsG.GET("", charH.List)
		charsG.POST("", charH.Create)
		charsG.GET("/:id", charH.Get)
		charsG.DELETE("/:id", charH.Delete)

		api.GET("/ranking/level", rankH.TopLevel)
		api.GET("/ranking/level/:char_id", rankH.Character)

		api.POST("/sessions", auth, sessH.Open)
		sessG := api.Group("/session", auth, mw.RequireCharacter())
		sessG.GET("", sessH.HUD)
		sessG.DELETE("", sessH.Close)
		sessG.GET("/events", sseH.ServeSSE)
		sessG.PUT("/pose", sessH.SetPose)
		sessG.POST("/save", sessH.Save)
		sessG.POST("/skills/:id/activate", sessH.Activate)
		sessG.GET("/skills/:id/cooldown", sessH.Cooldown)
		sessG.POST("/skills/:id/upgrade", sessH.Upgrade)
		sessG.PUT("/hotbar/:slot", sessH.AssignSlot)
		sessG.DELETE("/hotbar/:slot", sessH.ClearSlot)
		sessG.POST("/hotbar/:slot/activate", sessH.ActivateSlot)
		sessG.POST("/inventory/:index/use", sessH.UseItem)
		sessG.DELETE("/inventory/:index", sessH.DropItem)
		sessG.POST("/equipment/:slot", sessH.Equip)
		sessG.DELETE("/equipment/:slot", sessH.Unequip)
	}

	adminG := r.Group("/admin", mw.IPWhitelist(cfg.Server.AdminIPs), mw.AdminAuth(cfg.Server.AdminKey))
	{
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/sessions", adminH.ListSessions)
		adminG.DELETE("/sessions/:char_id", adminH.KickSession)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.POST("/ranking/rebuild", adminH.RebuildRanking)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.GET("/audit", adminH.Audit)
		adminG.POST("/announce", sseH.PostAnnounce)
	}

	// ---- WebSocket ----
	wsH := apiws.NewHandler(a.Cache, a.PubSub, cfg.Security, a.Sessions, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)
	return r
}

// Shutdown stops the tickers, saves and unloads every session and flushes
// the audit queue.
func (a *App) Shutdown(ctx context.Context) {
	a.Scheduler.Stop()
	a.Service.CloseAll(ctx)
	a.Audit.Stop(ctx)
}
