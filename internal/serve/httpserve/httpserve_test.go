package httpserve

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/inference"
	"github.com/encoderfile/encoderfile/internal/modelconfig"
)

func testState(t *testing.T) *inference.State {
	t.Helper()
	cfg, err := modelconfig.Parse([]byte(`{"model_type":"sequence-classification","pad_token_id":0,"id2label":{"0":"NEGATIVE","1":"POSITIVE"}}`))
	require.NoError(t, err)
	return inference.NewState("test-model", container.SequenceClassification, nil, nil, cfg, nil)
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s := New(testState(t), zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK!", rec.Body.String())
}

func TestHandleModelReturnsIdentityAndLabels(t *testing.T) {
	s := New(testState(t), zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/model", nil)
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "test-model")
	require.Contains(t, rec.Body.String(), "POSITIVE")
}

func TestHandleOpenAPIServesSpec(t *testing.T) {
	s := New(testState(t), zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/predict")
}

func TestHandlePredictRejectsMalformedBody(t *testing.T) {
	s := New(testState(t), zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
