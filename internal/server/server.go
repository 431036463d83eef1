package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/revstrux/revstrux/internal/analysis"
	"github.com/revstrux/revstrux/internal/clock"
	"github.com/revstrux/revstrux/internal/config"
	"github.com/revstrux/revstrux/internal/observability"
	obsmiddleware "github.com/revstrux/revstrux/internal/observability/logger"
	obsmetrics "github.com/revstrux/revstrux/internal/observability/metrics"
	obstracing "github.com/revstrux/revstrux/internal/observability/tracing"
	"github.com/revstrux/revstrux/internal/session"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

var Module = fx.Module("http.server",
	session.Module,
	analysis.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug: obsCfg.Debug(),
		Log:   log,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, log *zap.Logger) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, runner *analysis.Runner) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			runner.Wait()
			return nil
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	engineCfg *config.EngineConfigHolder
	sessions  sessiondomain.Service
	runner    *analysis.Runner
	clock     clock.Clock
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	EngineCfg *config.EngineConfigHolder
	Sessions  sessiondomain.Service
	Runner    *analysis.Runner
	Clock     clock.Clock
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		engineCfg: p.EngineCfg,
		sessions:  p.Sessions,
		runner:    p.Runner,
		clock:     p.Clock,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Sessions --------
	api.POST("/sessions", s.CreateSession)
	api.GET("/sessions", s.ListSessions)
	api.GET("/sessions/:id", s.GetSession)
	api.DELETE("/sessions/:id", s.DeleteSession)
	api.GET("/sessions/:id/settings", s.GetSettings)
	api.PUT("/sessions/:id/settings", s.UpdateSettings)

	// -------- Uploads --------
	api.POST("/sessions/:id/upload", s.UploadFile)
	api.POST("/sessions/:id/upload/zip", s.UploadArchive)
	api.GET("/sessions/:id/uploads", s.GetUploadStatus)
	api.POST("/sessions/:id/validate", s.ValidateSession)

	// -------- Identity review --------
	api.GET("/sessions/:id/identity", s.GetIdentity)
	api.POST("/sessions/:id/identity/decide", s.DecideIdentity)
	api.POST("/sessions/:id/identity/undo", s.UndoIdentity)
	api.POST("/sessions/:id/identity/reset", s.ResetIdentity)

	// -------- Analysis --------
	api.POST("/sessions/:id/analyze", s.StartAnalysis)
	api.POST("/sessions/:id/analyze/cancel", s.CancelAnalysis)
	api.GET("/sessions/:id/status", s.GetStatus)

	// -------- Results --------
	api.GET("/sessions/:id/dashboard", s.GetDashboard)
	api.GET("/sessions/:id/accounts", s.ListAccounts)
	api.GET("/sessions/:id/accounts/:rsxId", s.GetLineage)
	api.GET("/sessions/:id/exclusions", s.ListExclusions)

	// -------- Exports --------
	api.GET("/sessions/:id/export/accounts", s.ExportAccounts)
	api.GET("/sessions/:id/export/lineage/:rsxId", s.ExportLineage)
	api.GET("/sessions/:id/export/exclusions", s.ExportExclusions)
	api.GET("/sessions/:id/export/report", s.ExportReport)

	// -------- Data helpers --------
	api.GET("/templates/:fileType", s.DownloadTemplate)
	api.POST("/synthetic", s.CreateSyntheticSession)
	api.GET("/synthetic/download/:fileType", s.DownloadSynthetic)
}
