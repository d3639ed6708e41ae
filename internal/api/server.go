package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	hydrodb "github.com/curwsl/hydrodb"
	"github.com/curwsl/hydrodb/internal/config"
	"github.com/curwsl/hydrodb/internal/observability"
)

// Store is the slice of the adapter surface the REST API consumes.
type Store interface {
	LookupEventID(ctx context.Context, meta hydrodb.Metadata) (string, bool, error)
	EnsureEvent(ctx context.Context, meta hydrodb.Metadata) (string, error)
	GetEventIDs(ctx context.Context, q hydrodb.EventQuery, opts hydrodb.QueryOptions) ([]hydrodb.Event, error)
	InsertTimeseries(ctx context.Context, eventID string, points []hydrodb.Point, upsert bool, table hydrodb.DataTable) (int64, error)
	RetrieveTimeseries(ctx context.Context, eventIDs []string, opts hydrodb.RetrieveOptions) ([]hydrodb.EventSeries, error)
	ExtractGroupedTimeseries(ctx context.Context, eventID, startDate, endDate string, op hydrodb.GroupOperation) ([]hydrodb.Point, error)
	DeleteTimeseries(ctx context.Context, eventID string) (int64, error)
	CreateStation(ctx context.Context, s hydrodb.Station) (int, error)
	GetStation(ctx context.Context, q hydrodb.StationQuery) (*hydrodb.Station, error)
	DeleteStation(ctx context.Context, id int, stationID string) (int64, error)
	CreateSource(ctx context.Context, s hydrodb.Source) (hydrodb.Source, error)
	GetSource(ctx context.Context, id int, name string) (*hydrodb.Source, error)
	DeleteSource(ctx context.Context, id int) (int64, error)
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg     config.Config
	store   Store
	metrics *observability.Metrics
	engine  *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store, metrics *observability.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())
	engine.Use(metricsMiddleware(metrics))

	server := &Server{cfg: cfg, store: store, metrics: metrics, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	if s.cfg.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}

	v1.POST("/events", s.handleCreateEvent)
	v1.GET("/events", s.handleListEvents)
	v1.DELETE("/events/:event_id", s.handleDeleteEvent)
	v1.POST("/events/:event_id/timeseries", s.handleInsertTimeseries)
	v1.GET("/events/:event_id/timeseries", s.handleGetTimeseries)
	v1.GET("/events/:event_id/aggregate", s.handleAggregate)

	v1.POST("/stations", s.handleCreateStation)
	v1.GET("/stations", s.handleGetStation)
	v1.DELETE("/stations", s.handleDeleteStation)

	v1.POST("/sources", s.handleCreateSource)
	v1.GET("/sources", s.handleGetSource)
	v1.DELETE("/sources", s.handleDeleteSource)
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func metricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
