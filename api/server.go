// Package api exposes the engine's per-cycle output over HTTP and
// websocket. The presentation layer itself (dashboard widgets, layout) is a
// separate consumer of these endpoints.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/cwklurks/tokyo-market-risk-dashboard/api/responses"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/actionqueue"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/engine"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/pricing"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/ws"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

// AuditLister serves the persisted audit trail, newest first.
type AuditLister interface {
	List(ctx context.Context, limit int) ([]models.ActionQueueEntry, error)
}

// Server represents the API server
type Server struct {
	router *gin.Engine
	logger *zap.Logger
	engine *engine.Service
	queue  *actionqueue.Queue
	audit  AuditLister
	hub    *ws.Hub
}

// NewServer creates the API server around the engine and queue. audit may be
// nil, in which case the audit endpoint serves the queue's in-memory trail.
func NewServer(logger *zap.Logger, engineSvc *engine.Service, queue *actionqueue.Queue, audit AuditLister, hub *ws.Hub, allowedOrigins []string) *Server {
	server := &Server{
		logger: logger,
		engine: engineSvc,
		queue:  queue,
		audit:  audit,
		hub:    hub,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("riskd-api"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.hub != nil {
		s.router.GET("/ws", gin.WrapH(s.hub))
	}

	v1 := s.router.Group("/api/v1")
	{
		risk := v1.Group("/risk")
		{
			risk.GET("/scores", s.getScores)
			risk.GET("/actions", s.getActions)
			risk.GET("/actions/audit", s.getAudit)
			risk.POST("/evaluate", s.evaluate)
		}
		v1.GET("/entities", s.getEntities)
		v1.POST("/pricing/implied-vol", s.impliedVol)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) getScores(c *gin.Context) {
	result := s.engine.LastResult()
	if result == nil {
		responses.Problem(c, errors.NewWithKind(errors.KindNotFound, "no evaluation cycle has completed yet"))
		return
	}
	responses.Success(c, result)
}

func (s *Server) getActions(c *gin.Context) {
	responses.Success(c, s.queue.Entries())
}

func (s *Server) getAudit(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			responses.Problem(c, errors.InvalidInput("invalid limit %q", raw))
			return
		}
		limit = n
	}

	if s.audit != nil {
		entries, err := s.audit.List(c.Request.Context(), limit)
		if err != nil {
			responses.Problem(c, err)
			return
		}
		responses.Success(c, entries)
		return
	}

	entries := s.queue.Audit()
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	responses.Success(c, entries)
}

type impliedVolRequest struct {
	OptionPrice  float64 `json:"option_price" binding:"required,gt=0"`
	Spot         float64 `json:"spot" binding:"required,gt=0"`
	Strike       float64 `json:"strike" binding:"required,gt=0"`
	TimeToExpiry float64 `json:"time_to_expiry" binding:"required,gt=0"`
	Rate         float64 `json:"rate"`
}

func (s *Server) impliedVol(c *gin.Context) {
	var req impliedVolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Problem(c, errors.InvalidInput("invalid request body: %v", err))
		return
	}

	vol, err := pricing.ImpliedVol(req.OptionPrice, pricing.Model{
		Spot:   req.Spot,
		Strike: req.Strike,
		T:      req.TimeToExpiry,
		Rate:   req.Rate,
	})
	if err != nil {
		responses.Problem(c, err)
		return
	}
	responses.Success(c, gin.H{"implied_volatility": vol})
}

func (s *Server) getEntities(c *gin.Context) {
	snapshot := s.engine.LastSnapshot()
	if snapshot == nil {
		responses.Problem(c, errors.NewWithKind(errors.KindNotFound, "no entity snapshot available yet"))
		return
	}
	responses.Success(c, snapshot)
}

func (s *Server) evaluate(c *gin.Context) {
	result, err := s.engine.EvaluateCycle(c.Request.Context())
	if err != nil {
		responses.Problem(c, err)
		return
	}
	responses.Success(c, result, "evaluation cycle completed")
}
