// Package adminapi is the administrative HTTP surface: runtime controls,
// statistics and the click-tracking redirect.
package adminapi

import (
	"context"
	"net/http"
	"time"

	"dealcaster/internal/config"
	"dealcaster/internal/model"
	"dealcaster/internal/sched"

	"github.com/gin-gonic/gin"
)

// Controller is the scheduler surface the API drives.
type Controller interface {
	Status() sched.Status
	HourlyStats() sched.HourlyStats
	Pause()
	Resume()
	EmergencyStop() int
	AdjustFrequency(min, max int) error
}

// StatsStore is the history store surface the API reads and writes.
type StatsStore interface {
	Statistics(ctx context.Context) model.Statistics
	CategoryMetrics(ctx context.Context) []model.CategoryMetric
	RecordClick(ctx context.Context, productID string) error
	AffiliateURL(ctx context.Context, productID string) (string, error)
}

// ProductSource resolves a single product for force posting.
type ProductSource interface {
	FetchDetails(ctx context.Context, productID string) (*model.Product, error)
}

// Scorer mirrors the planner's scoring dependency.
type Scorer interface {
	Score(ctx context.Context, p model.Product) float64
}

// ForcePoster publishes a product immediately, bypassing the schedule.
type ForcePoster interface {
	ForcePostNow(ctx context.Context, p model.Product, score float64)
}

// Server wires the admin routes onto a gin engine.
type Server struct {
	ctrl    Controller
	store   StatsStore
	source  ProductSource
	scorer  Scorer
	poster  ForcePoster
	engine  *gin.Engine
	addr    string
	httpSrv *http.Server
}

func NewServer(cfg config.AdminConfig, ctrl Controller, store StatsStore, source ProductSource, scorer Scorer, poster ForcePoster) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		ctrl:   ctrl,
		store:  store,
		source: source,
		scorer: scorer,
		poster: poster,
		engine: gin.New(),
		addr:   cfg.Addr,
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/status", s.status)
	s.engine.GET("/stats", s.stats)
	s.engine.GET("/stats/hourly", s.hourlyStats)
	s.engine.POST("/pause", s.pause)
	s.engine.POST("/resume", s.resume)
	s.engine.POST("/frequency", s.frequency)
	s.engine.POST("/posts/force", s.forcePost)
	s.engine.POST("/emergency-stop", s.emergencyStop)
	s.engine.GET("/r/:id", s.redirect)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until ctx is cancelled. It satisfies the worker interface so
// the server runs under the same supervisor as the dispatcher.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
