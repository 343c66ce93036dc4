package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"verifier/app/handler"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewRouter(handler.NewAnalysisHandler(nil, nil, nil), handler.NewVerificationHandler(nil, nil), opts).Setup(engine)
	return engine
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(newEngine(Options{}), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newEngine(Options{MetricsPath: "/metrics"})
	serve(engine, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "verifier_http_request_duration_seconds")

	w = serve(newEngine(Options{}), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEngineAPIRequiresToken(t *testing.T) {
	engine := newEngine(Options{APIKey: "secret"})

	w := serve(engine, httptest.NewRequest(http.MethodPost, "/api/v1/analysis/tasks/claim", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/state/cumulative-sums", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = serve(engine, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "authorized request reaches the handler")
}

func TestControlAPIValidatesBody(t *testing.T) {
	engine := newEngine(Options{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/verification-tasks/S/windows", strings.NewReader(`{"mode":""}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(engine, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	engine := newEngine(Options{})
	// nil services panic once a request gets past validation
	w := serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/deployments/job-1/risk", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
