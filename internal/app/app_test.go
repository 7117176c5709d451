package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Mode: gin.TestMode, TimeoutSeconds: 5},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		JWT:      config.JWTConfig{Secret: "test-secret", Issuer: "clinic-api"},
		Scheduling: config.SchedulingConfig{
			Timezone:                   "America/Sao_Paulo",
			DefaultSlotIntervalMinutes: 30,
			DefaultDurationMinutes:     60,
			ScheduleCacheTTL:           time.Minute,
		},
	}
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	r, err := NewRouter(Deps{
		Config:    cfg,
		Stores:    MemoryStores(memory.NewStore()),
		Publisher: messaging.NewEventPublisher(messaging.NopBroker{}, "test"),
		Registry:  registry,
		Metrics:   metrics.NewMetrics(MetricsNamespace, registry),
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)

	token, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer).GenerateAccessToken(uuid.New(), nil, time.Hour)
	require.NoError(t, err)
	return &apiClient{t: t, handler: r.Engine(), token: token}
}

func (c *apiClient) do(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestAPI_HealthIsPublic(t *testing.T) {
	api := newAPI(t)
	api.token = ""

	code, _ := api.do(http.MethodGet, "/api/v1/health/live", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodGet, "/api/v1/health/ready", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env := api.do(http.MethodGet, "/api/v1/services", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "error", env.Status)
}

func TestAPI_BookingFlow(t *testing.T) {
	api := newAPI(t)

	code, env := api.do(http.MethodPut, "/api/v1/schedules", map[string]interface{}{
		"days": []map[string]interface{}{{
			"weekday":               "segunda",
			"is_active":             true,
			"work_start":            "08:00",
			"work_end":              "12:00",
			"slot_interval_minutes": 60,
		}},
	})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = api.do(http.MethodPost, "/api/v1/services", map[string]interface{}{
		"name":             "Consulta",
		"duration_minutes": 60,
		"price":            "150",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var svc struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, env.Data, &svc)

	slotsPath := "/api/v1/appointments/available-slots?date=2025-03-10&service_id=" + svc.ID.String()
	var slots []map[string]string
	code, env = api.do(http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env.Data, &slots)
	assert.Len(t, slots, 4)

	booking := map[string]interface{}{
		"service_id":   svc.ID,
		"patient_cpf":  "123.456.789-00",
		"patient_name": "Maria Souza",
		"start_time":   "2025-03-10T09:00:00-03:00",
		"end_time":     "2025-03-10T10:00:00-03:00",
	}
	code, env = api.do(http.MethodPost, "/api/v1/appointments", booking)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var apt struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, env.Data, &apt)

	code, _ = api.do(http.MethodPost, "/api/v1/appointments", booking)
	assert.Equal(t, http.StatusConflict, code)

	code, env = api.do(http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &slots)
	assert.Len(t, slots, 3)

	code, env = api.do(http.MethodPatch, "/api/v1/appointments/"+apt.ID.String()+"/status",
		map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var change struct {
		TransactionInfo struct {
			Action string `json:"action"`
		} `json:"transaction_info"`
	}
	decode(t, env.Data, &change)
	assert.Equal(t, "created", change.TransactionInfo.Action)

	code, env = api.do(http.MethodGet, "/api/v1/transactions?origin=agendamento", nil)
	require.Equal(t, http.StatusOK, code)
	var txs []struct {
		ID     uuid.UUID `json:"id"`
		Amount string    `json:"amount"`
	}
	decode(t, env.Data, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "150", txs[0].Amount)

	// Ledger rows owned by an appointment cannot be edited by hand.
	code, _ = api.do(http.MethodDelete, "/api/v1/transactions/"+txs[0].ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAPI_Validation(t *testing.T) {
	api := newAPI(t)

	code, env := api.do(http.MethodGet, "/api/v1/appointments/available-slots?date=10/03/2025", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "date")

	code, _ = api.do(http.MethodGet, "/api/v1/schedules/funday", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodGet, "/api/v1/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodGet, "/api/v1/appointments/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_SettledBillPostsToLedger(t *testing.T) {
	api := newAPI(t)

	code, env := api.do(http.MethodPost, "/api/v1/accounts-payable", map[string]interface{}{
		"name":     "Aluguel",
		"amount":   "1200",
		"due_date": "2025-04-05",
		"status":   "pago",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = api.do(http.MethodGet, "/api/v1/transactions?type=saida", nil)
	require.Equal(t, http.StatusOK, code)
	var txs []map[string]interface{}
	decode(t, env.Data, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "conta_a_pagar", txs[0]["origin"])

	// Receivables use their own settled status.
	code, _ = api.do(http.MethodPost, "/api/v1/accounts-receivable", map[string]interface{}{
		"name":     "Convênio",
		"amount":   "300",
		"due_date": "2025-04-05",
		"status":   "pago",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(http.MethodGet, "/api/v1/accounts-payable/statistics", nil)
	require.Equal(t, http.StatusOK, code)
	var stats struct {
		Count int `json:"count"`
	}
	decode(t, env.Data, &stats)
	assert.Equal(t, 1, stats.Count)
}

func TestAPI_MetricsEndpoint(t *testing.T) {
	api := newAPI(t)
	api.do(http.MethodGet, "/api/v1/health/live", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clinic_http_requests_total")
}

func TestOpenStores_Memory(t *testing.T) {
	stores, closeFn, err := OpenStores(config.DatabaseConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	assert.NoError(t, closeFn())
	assert.NotNil(t, stores.Pinger)

	_, _, err = OpenStores(config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}
