package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/actionqueue"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/audit"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/config"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/contagion"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/engine"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/feeds"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/fusion"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

type APITestSuite struct {
	suite.Suite
	server *Server
	market *feeds.StaticMarketProvider
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(s.T())

	cfg := config.EngineConfig{
		PricingWeight:      0.6,
		ContagionWeight:    0.4,
		Decay:              0.5,
		MaxIterations:      50,
		ConvergenceEpsilon: 1e-4,
		ShockRadiusKM:      500,
		ShockDecayWindow:   72 * time.Hour,
		VolatilityCeiling:  1.5,
		TierThresholds:     []float64{25, 50, 75},
		TimeToExpiryYears:  0.25,
		VaRHorizonDays:     10,
		PricingScale:       1.0,
		ContagionScale:     100.0,
		Mode:               "fused",
		Interval:           time.Second,
		Workers:            4,
	}

	graph, err := contagion.NewGraph([]string{"nikkei", "sony"}, []models.ContagionEdge{
		{Source: "nikkei", Target: "sony", Weight: 0.8},
	})
	s.Require().NoError(err)

	fuser, err := fusion.New(fusion.Config{
		PricingWeight:   cfg.PricingWeight,
		ContagionWeight: cfg.ContagionWeight,
		PricingScale:    cfg.PricingScale,
		ContagionScale:  cfg.ContagionScale,
		TierThresholds:  cfg.TierThresholds,
	})
	s.Require().NoError(err)

	s.market = feeds.NewStaticMarketProvider([]models.Entity{
		{ID: "nikkei", Category: models.CategoryInstrument, BaselineVolatility: 0.2,
			MarketValue: decimal.NewFromInt(38500),
			Coords:      models.Coordinates{Lat: 35.6762, Lon: 139.6503}},
		{ID: "sony", Category: models.CategoryInstitution, BaselineVolatility: 0.3,
			MarketValue: decimal.NewFromInt(13200),
			Coords:      models.Coordinates{Lat: 35.6310, Lon: 139.7416}},
	})
	store, err := audit.NewStore("file::memory:")
	s.Require().NoError(err)
	queue := actionqueue.New(logger, store)

	svc, err := engine.NewService(logger, cfg, s.market, feeds.NewStaticSeismicProvider(nil),
		graph, fuser, queue, nil, nil)
	s.Require().NoError(err)

	s.server = NewServer(logger, svc, queue, store, nil, []string{"*"})
}

func (s *APITestSuite) request(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.server.Router().ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) TestHealthCheck() {
	w := s.request(http.MethodGet, "/health")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"ok"`)
}

func (s *APITestSuite) TestScoresBeforeFirstCycle() {
	w := s.request(http.MethodGet, "/api/v1/risk/scores")
	s.Equal(http.StatusNotFound, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "application/problem+json")

	var problem map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &problem))
	s.Equal("Not Found", problem["title"])
}

func (s *APITestSuite) TestEvaluateThenFetch() {
	w := s.request(http.MethodPost, "/api/v1/risk/evaluate")
	s.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Scores []models.RiskScore `json:"scores"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.Success)
	s.Len(resp.Data.Scores, 2)

	w = s.request(http.MethodGet, "/api/v1/risk/scores")
	s.Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "/api/v1/entities")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "nikkei")
}

func (s *APITestSuite) TestEvaluateFeedFailure() {
	s.market.Fail(errors.FeedUnavailable("collaborator down"))

	w := s.request(http.MethodPost, "/api/v1/risk/evaluate")
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *APITestSuite) TestActionsEndpoints() {
	s.request(http.MethodPost, "/api/v1/risk/evaluate")

	w := s.request(http.MethodGet, "/api/v1/risk/actions")
	s.Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "/api/v1/risk/actions/audit")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "initial assessment")
}

func (s *APITestSuite) TestAuditLimit() {
	s.request(http.MethodPost, "/api/v1/risk/evaluate")

	w := s.request(http.MethodGet, "/api/v1/risk/actions/audit?limit=1")
	s.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Data []models.ActionQueueEntry `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Data, 1)

	w = s.request(http.MethodGet, "/api/v1/risk/actions/audit?limit=bogus")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "application/problem+json")
}

func (s *APITestSuite) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.server.Router().ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) TestImpliedVolEndpoint() {
	w := s.postJSON("/api/v1/pricing/implied-vol",
		`{"option_price":4.115,"spot":100,"strike":100,"time_to_expiry":0.25,"rate":0.01}`)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			ImpliedVolatility float64 `json:"implied_volatility"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.InDelta(0.2, resp.Data.ImpliedVolatility, 0.005)
}

func (s *APITestSuite) TestImpliedVolRejectsPriceBelowIntrinsic() {
	w := s.postJSON("/api/v1/pricing/implied-vol",
		`{"option_price":0.5,"spot":120,"strike":100,"time_to_expiry":0.25,"rate":0.01}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "application/problem+json")
}

func (s *APITestSuite) TestMetricsEndpoint() {
	w := s.request(http.MethodGet, "/metrics")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "riskd_")
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
