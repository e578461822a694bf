package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"delayrisk/app"
	"delayrisk/domain/schema"
	"delayrisk/internal"
	"delayrisk/internal/testkit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const exampleBody = `{"n_edges":12,"density":0.4,"critical_path_len":8,"pct_critical_tasks":0.3,
"T_baseline":50,"mean_m":1.1,"mean_range_po":2.0,"instability_m":0.2,"spi_early":2.5,"cpi_early":-0.3}`

func newTestServer(t *testing.T) (*Server, *testkit.StubClassifier) {
	t.Helper()
	model := &testkit.StubClassifier{
		Columns: schema.Default().FeatureColumns(),
		Score:   func(row []float64) float64 { return row[8] / 4 },
	}
	svc, err := app.NewInferenceService(schema.Default(), model, internal.NewNopLogger())
	require.NoError(t, err)

	cfg := DefaultServerConfig()
	cfg.GinMode = "test"
	cfg.MaxBatchSize = 3
	return NewServer(svc, cfg, internal.NewNopLogger()), model
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestPredict_OK(t *testing.T) {
	s, model := newTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/predict", exampleBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[PredictResponse](t, w)
	assert.InDelta(t, 0.5, resp.Probability, 1e-12)
	assert.Equal(t, "0.500", resp.Display)
	assert.Equal(t, []float64{12, 0.4, 8, 0.3, 50, 1.1, 2.0, 0.2, 2, 0}, model.LastRows()[0])
}

func TestPredict_ContractViolation(t *testing.T) {
	s, _ := newTestServer(t)

	body := strings.Replace(exampleBody, `,"cpi_early":-0.3`, `,"colour":"red"`, 1)
	body = strings.Replace(body, `"density":0.4`, `"density":true`, 1)
	w := do(t, s, http.MethodPost, "/v1/predict", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[ContractErrorResponse](t, w)
	assert.Equal(t, "DATA_CONTRACT", resp.Code)
	assert.Equal(t, []string{"colour"}, resp.Extra)
	assert.Equal(t, []string{"cpi_early"}, resp.Missing)
	require.Len(t, resp.Invalid, 1)
	assert.Equal(t, "density", resp.Invalid[0].Key)
	assert.Equal(t, "bool", resp.Invalid[0].Kind)
	assert.Nil(t, resp.Index)
}

func TestPredict_MissingOnly(t *testing.T) {
	s, _ := newTestServer(t)
	body := strings.Replace(exampleBody, `,"cpi_early":-0.3`, ``, 1)

	w := do(t, s, http.MethodPost, "/v1/predict", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, []any{"cpi_early"}, raw["missing"])
	assert.Equal(t, []any{}, raw["extra"])
	assert.Equal(t, []any{}, raw["invalid"])
}

func TestPredict_BadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	for name, body := range map[string]string{
		"malformed": `{"n_edges":`,
		"array":     `[1,2,3]`,
		"string":    `"hello"`,
		"null":      `null`,
		"empty":     ``,
		"trailing":  `{} {}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/v1/predict", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "INVALID_INPUT", decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestPredictBatch(t *testing.T) {
	s, _ := newTestServer(t)

	low := strings.Replace(exampleBody, `"spi_early":2.5`, `"spi_early":1`, 1)
	w := do(t, s, http.MethodPost, "/v1/predict/batch", `{"records":[`+exampleBody+`,`+low+`]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[BatchResponse](t, w)
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "0.500", resp.Predictions[0].Display)
	assert.Equal(t, "0.250", resp.Predictions[1].Display)
}

func TestPredictBatch_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	bad := strings.Replace(exampleBody, `"mean_m":1.1`, `"mean_m":"1.1"`, 1)
	w := do(t, s, http.MethodPost, "/v1/predict/batch", `{"records":[`+exampleBody+`,`+bad+`]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[ContractErrorResponse](t, w)
	require.NotNil(t, resp.Index)
	assert.Equal(t, 1, *resp.Index)
	assert.Equal(t, "mean_m", resp.Invalid[0].Key)

	w = do(t, s, http.MethodPost, "/v1/predict/batch", `{"records":[`+exampleBody+`,null]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/v1/predict/batch", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	many := strings.Repeat(exampleBody+",", 3) + exampleBody
	w = do(t, s, http.MethodPost, "/v1/predict/batch", `{"records":[`+many+`]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/v1/predict/batch", `{"records":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[BatchResponse](t, w).Predictions)
}

func TestSchemaAndHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/v1/schema", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[SchemaResponse](t, w)
	assert.Equal(t, schema.Default().FeatureColumns(), resp.FeatureColumns)
	assert.Equal(t, "label_delay", resp.LabelColumn)
	assert.Equal(t, schema.Default().Fingerprint().String(), resp.Fingerprint)
	require.Len(t, resp.ClipRules, 2)
	assert.Equal(t, 2.0, resp.ClipRules[0].Max)

	w = do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
}

func TestBodyLimit(t *testing.T) {
	model := &testkit.StubClassifier{Columns: schema.Default().FeatureColumns(), Score: func([]float64) float64 { return 0 }}
	svc, err := app.NewInferenceService(nil, model, internal.NewNopLogger())
	require.NoError(t, err)
	cfg := DefaultServerConfig()
	cfg.GinMode = "test"
	cfg.MaxBodyBytes = 16
	s := NewServer(svc, cfg, internal.NewNopLogger())

	w := do(t, s, http.MethodPost, "/v1/predict", exampleBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestStart_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	s.config.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
