package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxtrade/perpbot/internal/botmanager"
	"github.com/fluxtrade/perpbot/internal/config"
	"github.com/fluxtrade/perpbot/internal/exchange"
	"github.com/fluxtrade/perpbot/internal/model"
	"github.com/fluxtrade/perpbot/internal/statestore"
)

type noopExchange struct{}

func (noopExchange) GetCurrentPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(50000), nil
}
func (noopExchange) GetKlines(context.Context, string, string, int) ([]model.Candle, error) {
	return nil, nil
}
func (noopExchange) GetTicker24h(context.Context, string) (model.Ticker24h, error) {
	return model.Ticker24h{}, nil
}
func (noopExchange) SetLeverage(context.Context, string, int32) error { return nil }
func (noopExchange) CreateMarketOrder(context.Context, string, exchange.OrderSide, decimal.Decimal) (exchange.OrderResult, error) {
	return exchange.OrderResult{}, nil
}
func (noopExchange) GetPosition(context.Context, string) (*exchange.ExchangePosition, error) {
	return nil, nil
}
func (noopExchange) ClosePosition(context.Context, string) (*exchange.OrderResult, error) {
	return &exchange.OrderResult{}, nil
}
func (noopExchange) GetAccountBalance(context.Context) (exchange.AccountBalance, error) {
	return exchange.AccountBalance{Available: decimal.NewFromInt(1000)}, nil
}

var _ exchange.Exchange = noopExchange{}

func newTestHandler(t *testing.T) (*Handler, *mux.Router) {
	t.Helper()
	mgr := botmanager.New(botmanager.Params{
		Config: &config.Config{
			LoopInterval:         time.Hour,
			MaxConsecutiveLosses: 3,
			MaxDailyLossPct:      decimal.NewFromFloat(0.05),
			CircuitCooldown:      30 * time.Minute,
			NotionalCapital:      decimal.NewFromInt(1000),
		},
		Exchange: noopExchange{},
		State:    statestore.NewDummyStore(),
	})
	h := New(mgr)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return h, router
}

func doRequest(router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetBot(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(router, http.MethodPost, "/api/v1/bots", createBotRequest{BotName: "primary", Symbol: "BTCUSDT", RiskLevel: "medium"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/v1/bots/primary", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateDuplicateBotConflicts(t *testing.T) {
	_, router := newTestHandler(t)
	req := createBotRequest{BotName: "primary", Symbol: "BTCUSDT", RiskLevel: "medium"}

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/bots", req).Code)
	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodPost, "/api/v1/bots", req).Code)
}

func TestGetUnknownBotReturnsNotFound(t *testing.T) {
	_, router := newTestHandler(t)
	rec := doRequest(router, http.MethodGet, "/api/v1/bots/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartStopAndDeleteBot(t *testing.T) {
	_, router := newTestHandler(t)
	req := createBotRequest{BotName: "primary", Symbol: "BTCUSDT", RiskLevel: "medium"}
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/bots", req).Code)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/bots/primary/start", nil).Code)

	// Running bot cannot be deleted.
	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodDelete, "/api/v1/bots/primary", nil).Code)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/bots/primary/stop", nil).Code)
	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodDelete, "/api/v1/bots/primary", nil).Code)
}

func TestPauseResumeEmergencyClose(t *testing.T) {
	_, router := newTestHandler(t)
	req := createBotRequest{BotName: "primary", Symbol: "BTCUSDT", RiskLevel: "medium"}
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/bots", req).Code)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/bots/primary/pause", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/bots/primary/resume", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/bots/primary/emergency-close", nil).Code)
}

func TestStartAllStopAllEndpoints(t *testing.T) {
	_, router := newTestHandler(t)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/bots", createBotRequest{BotName: "a", Symbol: "BTCUSDT", RiskLevel: "medium"}).Code)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/bots", createBotRequest{BotName: "b", Symbol: "ETHUSDT", RiskLevel: "medium"}).Code)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/bots/start-all", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/bots/stop-all", nil).Code)
}

func TestListBotsReturnsSummary(t *testing.T) {
	_, router := newTestHandler(t)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/bots", createBotRequest{BotName: "a", Symbol: "BTCUSDT", RiskLevel: "medium"}).Code)

	rec := doRequest(router, http.MethodGet, "/api/v1/bots", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary botmanager.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Total)
}
