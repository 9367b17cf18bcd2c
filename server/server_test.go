package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlwiz/config"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/pkg/log"
)

func newTestServer(t *testing.T) (*Server, *log.TestLogger) {
	t.Helper()
	cfg := config.Default()
	cfg.Models.Forest.NEstimators = 10
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return New(cfg, WithLogger(logger)), logger
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func classificationCSV() string {
	var b strings.Builder
	b.WriteString("a,b,species\n")
	names := []string{"setosa", "versicolor", "virginica"}
	for i := 0; i < 60; i++ {
		c := i % 3
		fmt.Fprintf(&b, "%.3f,%.3f,%s\n", float64(c)*3+math.Sin(float64(i)), float64(c)-math.Cos(float64(i)), names[c])
	}
	return b.String()
}

const small = `x,y,label
1,2,a
2,4,b
3,7,a
4,,b
`

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPreview(t *testing.T) {
	s, logger := newTestServer(t)
	rec := do(t, s, "/api/preview?rows=2", "data.csv", small)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp previewResponse
	decode(t, rec, &resp)
	assert.Equal(t, []string{"x", "y", "label"}, resp.Columns)
	assert.Equal(t, 4, resp.TotalRows)
	assert.Equal(t, [][]string{{"1", "2", "a"}, {"2", "4", "b"}}, resp.Rows)
	assert.Equal(t, "categorical", resp.Kinds["label"])
	assert.True(t, logger.ContainsField(log.HTTPPathKey, "/api/preview"))

	rec = do(t, s, "/api/preview?rows=zero", "data.csv", small)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDescribe(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/describe", "data.csv", "x,y\n1,5\n2,\n3,\n")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Summaries []map[string]any `json:"summaries"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Summaries, 2)
	assert.Equal(t, "x", resp.Summaries[0]["column"])
	assert.Equal(t, 2.0, resp.Summaries[0]["mean"])
	// 値が 1 つだけの列の標準偏差は null
	assert.Nil(t, resp.Summaries[1]["std"])
}

func TestCorrelation(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/correlation", "data.csv", small)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Columns []string     `json:"columns"`
		Matrix  [][]*float64 `json:"matrix"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, []string{"x", "y"}, resp.Columns)
	require.NotNil(t, resp.Matrix[0][0])
	assert.Equal(t, 1.0, *resp.Matrix[0][0])
}

func TestPlot(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, "/api/plot?kind=bivariate&columns=x,y", "data.csv", small)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = do(t, s, "/api/plot?format=svg", "data.csv", small)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))

	rec = do(t, s, "/api/plot?kind=bivariate&columns=x", "data.csv", small)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, "/api/plot?format=gif", "data.csv", small)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEvaluate(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/evaluate?target=species", "iris.csv", classificationCSV())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp evaluateResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Classification", resp.ProblemType)
	assert.Equal(t, "accuracy", resp.Metric)
	assert.Equal(t, 48, resp.TrainRows)
	assert.Equal(t, 12, resp.TestRows)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Random Forest Classifier", resp.Results[0].Model)
	assert.Equal(t, "Logistic Regression", resp.Results[1].Model)
	for _, c := range resp.Results {
		require.NotNil(t, c.Score, c.Error)
		assert.GreaterOrEqual(t, *c.Score, 0.0)
		assert.LessOrEqual(t, *c.Score, 1.0)
	}
	assert.NotEmpty(t, resp.BestModel)
	assert.NotEmpty(t, resp.RunID)

	metrics := httptest.NewRecorder()
	s.Handler().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metrics.Code)
	out := metrics.Body.String()
	assert.Contains(t, out, `mlwiz_evaluations_total{problem_type="Classification"} 1`)
	assert.Contains(t, out, "mlwiz_candidate_fit_duration_seconds")
	assert.Contains(t, out, `http_requests_total{method="POST",route="/api/evaluate",status="200"} 1`)
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name     string
		path     string
		filename string
		content  string
		status   int
		code     string
	}{
		{"unsupported format", "/api/preview", "data.json", "{}", http.StatusUnsupportedMediaType, errors.KindUnsupportedFormat},
		{"missing target", "/api/evaluate?target=price", "data.csv", small, http.StatusNotFound, errors.KindMissingTargetColumn},
		{"no target", "/api/evaluate", "data.csv", small, http.StatusUnprocessableEntity, errors.KindValidation},
		{"empty file", "/api/describe", "data.csv", "x,y\n", http.StatusUnprocessableEntity, errors.KindEmptyDataset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.path, tt.filename, tt.content)
			assert.Equal(t, tt.status, rec.Code)
			var body errorBody
			decode(t, rec, &body)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestMissingUpload(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/describe", strings.NewReader("x,y\n1,2\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.NewModelFitError("m", "fit", errors.New("x"))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(&http.MaxBytesError{Limit: 1}))
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
