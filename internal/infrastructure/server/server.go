// Package server assembles the gateway: secure channel, capability gate,
// isolation core, scoring engine, and honeypot, fronted by one WebSocket
// endpoint for extensions and a read-only audit API for operators.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/Warden/mediator/internal/api/http"
	"github.com/GriffinCanCode/Warden/mediator/internal/api/middleware"
	"github.com/GriffinCanCode/Warden/mediator/internal/channel"
	"github.com/GriffinCanCode/Warden/mediator/internal/gate"
	"github.com/GriffinCanCode/Warden/mediator/internal/honeypot"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/config"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Warden/mediator/internal/isolation"
	"github.com/GriffinCanCode/Warden/mediator/internal/manifest"
	"github.com/GriffinCanCode/Warden/mediator/internal/pipeline"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers/clipboard"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers/dom"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers/network"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers/notify"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers/storage"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
	"github.com/GriffinCanCode/Warden/mediator/internal/threat"
	"github.com/GriffinCanCode/Warden/mediator/internal/ws"
)

// Server is the assembled gateway.
type Server struct {
	http    *http.Server
	manager *isolation.Manager
	logger  *logging.Logger
	config  *config.Config
}

// New wires the gateway from configuration.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	logger.Info("initializing mediation gateway",
		zap.String("addr", cfg.Server.Host+":"+cfg.Server.Port),
		zap.Float64("contain_threshold", cfg.Threat.ContainThreshold),
	)

	metrics := monitoring.New()

	// The host identity is generated per process. Extensions learn the
	// public key out of band when the gateway is installed; a restart
	// rotates it and forces every session through a fresh handshake.
	identity, err := channel.NewHostIdentity()
	if err != nil {
		return nil, fmt.Errorf("generate host identity: %w", err)
	}

	policy := &manifest.Policy{}
	if cfg.Policy.Path != "" {
		policy, err = manifest.LoadPolicy(cfg.Policy.Path)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		logger.Info("approval policy loaded",
			zap.String("path", cfg.Policy.Path),
			zap.Int("extensions", len(policy.Extensions)),
			zap.Bool("default_deny", policy.DefaultDeny),
		)
	} else {
		logger.Warn("no approval policy configured; running observe-only with zero grants")
	}

	manager := isolation.NewManager(cfg.Isolation, cfg.Channel.ReorderWindow, logger)
	engine := threat.NewEngine(cfg.Threat, manager, logger,
		threat.WithObserver(func(kind types.EventKind) {
			metrics.ThreatEvents.WithLabelValues(string(kind)).Inc()
		}))
	gt := gate.New(engine, logger)

	core := isolation.NewCore(manager, engine, cfg.Isolation, logger)
	core.RegisterExecutor(network.NewExecutor(logger))
	core.RegisterExecutor(storage.NewExecutor())
	core.RegisterExecutor(dom.NewExecutor(logger))
	core.RegisterExecutor(clipboard.NewExecutor())
	core.RegisterExecutor(notify.NewExecutor())

	registry := honeypot.NewRegistry(logger)
	registry.OnFault(metrics.HoneypotFaults.Inc)
	if cfg.Honeypot.DecoyRoot != "" {
		if err := registry.Filesystem().SeedFromDir(cfg.Honeypot.DecoyRoot); err != nil {
			logger.Warn("decoy seeding failed, using built-in corpus",
				zap.String("root", cfg.Honeypot.DecoyRoot),
				zap.Error(err),
			)
		}
	}

	manager.OnContain(func(sessionID string, score float64) {
		metrics.Containments.Inc()
	})
	manager.OnTerminate(func(sessionID string, reason string) {
		metrics.Terminations.Inc()
		core.ForgetSession(sessionID)
	})

	codec, err := channel.NewCodec(cfg.Channel.CompressThreshold)
	if err != nil {
		return nil, fmt.Errorf("init codec: %w", err)
	}

	tracer := tracing.New("mediator", logger.Logger)
	pipe := pipeline.New(codec, gt, core, engine, registry, metrics, tracer, logger)
	wsHandler := ws.NewHandler(identity, policy, manager, pipe, metrics, logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	audit := apihttp.NewHandler(manager, engine, registry)

	// Extension transport.
	router.GET("/channel", wsHandler.HandleConnection)

	// Audit API.
	router.GET("/health", audit.Health)
	router.GET("/sessions", audit.ListSessions)
	router.GET("/sessions/:id", audit.GetSession)
	router.GET("/sessions/:id/events", audit.GetSessionEvents)
	router.GET("/sessions/:id/forensics", audit.GetSessionForensics)
	router.GET("/report", audit.Report)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("gateway initialized")

	return &Server{
		http: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		manager: manager,
		logger:  logger,
		config:  cfg,
	}, nil
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("gateway listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown terminates every session, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gateway")
	s.manager.TerminateAll("gateway shutdown")
	err := s.http.Shutdown(ctx)
	_ = s.logger.Sync()
	return err
}
