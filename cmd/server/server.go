package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"ladder-platform/backend/internal/admin"
	"ladder-platform/backend/internal/auth"
	"ladder-platform/backend/internal/db"
	"ladder-platform/backend/internal/ladder"
	"ladder-platform/backend/internal/match"
	"ladder-platform/backend/internal/notify"
	"ladder-platform/backend/internal/presence"
	"ladder-platform/backend/internal/queue"
	"ladder-platform/backend/internal/redis"
	"ladder-platform/backend/internal/replay"
	"ladder-platform/backend/internal/store"
	"ladder-platform/backend/internal/writelog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// presenceWindow bounds how long a command call counts toward the
// active-population metric.
const presenceWindow = 30 * time.Minute

// Server holds all dependencies and configuration for the ladder
// platform server
type Server struct {
	config Config
	db     *db.DB
	redis  *redis.Client

	writeLog *writelog.Log
	store    *store.Store

	// Services
	authService *auth.Service
	queue       *queue.Engine
	matches     *match.Manager
	replayPool  *replay.Pool
	presence    *presence.Tracker
	ladder      *ladder.Service

	// Notifications
	hub    *notify.Hub
	router *notify.Router

	// WebSocket upgrader
	upgrader websocket.Upgrader

	httpServer *http.Server

	// cancel stops the background loops started by Start. stopWaves
	// halts only the pairing scheduler, ahead of the drains.
	cancel    context.CancelFunc
	stopWaves context.CancelFunc
}

// NewServer creates and initializes a new Server instance. The startup
// order matters: pending write-log jobs must reach the database before
// the in-memory store loads from it.
func NewServer(config Config) (*Server, error) {
	database, err := db.New(config.DBConfig)
	if err != nil {
		return nil, err
	}

	wl, err := writelog.Open(config.WriteLogPath)
	if err != nil {
		return nil, err
	}
	applier := writelog.NewDBApplier(database.DB)
	replayed, err := wl.ReplayPending(applier)
	if err != nil {
		return nil, fmt.Errorf("write log recovery failed: %w", err)
	}
	if replayed > 0 {
		log.Printf("[SERVER] replayed %d pending write-log jobs", replayed)
	}

	st := store.New(wl)
	if err := st.Load(database.DB); err != nil {
		return nil, fmt.Errorf("store load failed: %w", err)
	}

	var redisClient *redis.Client
	if config.RedisEnable {
		redisClient, err = redis.New(config.RedisConfig)
		if err != nil {
			log.Printf("[SERVER] redis unavailable, presence falls back to memory: %v", err)
			redisClient = nil
		}
	}
	pres := presence.New(redisClient, st, presenceWindow)

	if err := os.MkdirAll(config.ReplayStorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("replay storage dir: %w", err)
	}
	pool, err := replay.NewPool(config.ReplayParserBin, config.WorkerPoolSize)
	if err != nil {
		return nil, fmt.Errorf("replay worker pool failed: %w", err)
	}

	hub := notify.NewHub()
	router := notify.NewRouter(hub, float64(config.MessageRateLimitPerSec))

	matches := match.NewManager(st, ladder.RouterNotifier{Router: router},
		time.Duration(config.AbandonmentTimeoutSec)*time.Second)

	q := queue.New(
		queue.ProfileByName(config.MatchWindowProfile),
		time.Duration(config.WaveIntervalSec)*time.Second,
		func() int { return pres.Population(context.Background()) },
	)

	allow, err := admin.LoadAllowlist(config.AdminAllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("allowlist load failed: %w", err)
	}
	admins := admin.NewService(st, matches, q, allow)

	svc := ladder.New(st, q, matches, replay.NewService(st, pool), admins, pres)

	return &Server{
		config:      config,
		db:          database,
		redis:       redisClient,
		writeLog:    wl,
		store:       st,
		authService: auth.NewService(config.JWTSecret, config.AuthAPIKeyHash),
		queue:       q,
		matches:     matches,
		replayPool:  pool,
		presence:    pres,
		ladder:      svc,
		hub:         hub,
		router:      router,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// SetupRoutes configures the gin router with all endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}
	r.Use(cors.New(corsConfig))

	// Public routes
	r.POST("/api/auth/token", s.handleIssueToken)
	r.GET("/api/health", s.handleHealth)
	r.GET("/api/help", s.handleHelp)

	// Protected routes
	authorized := r.Group("/")
	authorized.Use(s.authMiddleware())
	{
		authorized.POST("/api/setup", s.handleSetup)
		authorized.POST("/api/country", s.handleSetCountry)
		authorized.POST("/api/terms/accept", s.handleAcceptTerms)
		authorized.POST("/api/terms/decline", s.handleDeclineTerms)
		authorized.POST("/api/shieldbattery/ack", s.handleAckShieldBattery)

		authorized.POST("/api/queue", s.handleQueue)
		authorized.POST("/api/dequeue", s.handleDequeue)
		authorized.GET("/api/status", s.handleStatus)

		authorized.POST("/api/matches/:id/report", s.handleReport)
		authorized.POST("/api/matches/:id/replay", s.handleUploadReplay)
		authorized.GET("/api/matches/:id", s.handleGetMatch)

		authorized.GET("/api/profile", s.handleOwnProfile)
		authorized.GET("/api/profile/:uid", s.handleProfile)
		authorized.GET("/api/leaderboard/:race", s.handleLeaderboard)
		authorized.GET("/api/races", s.handleRaces)

		// Admin endpoints
		authorized.POST("/api/admin/resolve", s.handleAdminResolve)
		authorized.POST("/api/admin/mmr", s.handleAdminAdjustMMR)
		authorized.POST("/api/admin/dequeue", s.handleAdminRemoveFromQueue)
		authorized.POST("/api/admin/aborts", s.handleAdminResetAborts)
		authorized.POST("/api/admin/ban", s.handleAdminToggleBan)
		authorized.POST("/api/admin/unblock", s.handleAdminUnblock)
		authorized.POST("/api/admin/clearqueue", s.handleAdminClearQueue)
		authorized.POST("/api/admin/toggleadmin", s.handleOwnerToggleAdmin)
		authorized.GET("/api/admin/actions", s.handleAdminActions)
	}

	// WebSocket endpoint (handles auth internally)
	r.GET("/ws", s.handleWebSocket)

	return r
}

// Start launches the background loops and the HTTP listener.
func (s *Server) Start(r *gin.Engine) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	waveCtx, stopWaves := context.WithCancel(ctx)
	s.stopWaves = stopWaves

	applier := writelog.NewDBApplier(s.db.DB)
	go s.writeLog.Run(ctx, applier)
	go s.router.Run(ctx)
	go s.queue.Run(waveCtx)
	go s.replayPool.Run(ctx)

	restored := s.matches.RestoreMonitors()
	if restored > 0 {
		log.Printf("[SERVER] restored abandonment monitors for %d live matches", restored)
	}

	s.httpServer = &http.Server{
		Addr:    ":" + s.config.ServerPort,
		Handler: r,
	}
	log.Printf("[SERVER] listening on port %s", s.config.ServerPort)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops intake first, then drains the durable and outbound
// queues before releasing connections.
func (s *Server) Shutdown(ctx context.Context) {
	log.Println("[SERVER] shutting down...")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[SERVER] http shutdown: %v", err)
		}
	}
	if s.stopWaves != nil {
		s.stopWaves()
	}
	s.matches.Stop()

	if err := s.router.Drain(ctx); err != nil {
		log.Printf("[SERVER] notification drain: %v", err)
	}
	if err := s.writeLog.Drain(ctx); err != nil {
		log.Printf("[SERVER] write log drain: %v", err)
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.replayPool.Close()

	if err := s.writeLog.Close(); err != nil {
		log.Printf("[SERVER] write log close: %v", err)
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if err := s.db.Close(); err != nil {
		log.Printf("[SERVER] database close: %v", err)
	}
	log.Println("[SERVER] shutdown complete")
}
