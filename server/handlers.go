package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mlwiz/automl"
	"github.com/YuminosukeSato/mlwiz/dataset"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/pkg/log"
	"github.com/YuminosukeSato/mlwiz/viz"
)

// uploadField is the multipart field carrying the dataset.
const uploadField = "file"

var contentTypes = map[string]string{
	"png": "image/png",
	"svg": "image/svg+xml",
	"pdf": "application/pdf",
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch errors.KindOf(err) {
	case errors.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case errors.KindMissingTargetColumn:
		return http.StatusNotFound
	case errors.KindEmptyDataset, errors.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := errors.KindOf(err)
	if status == http.StatusRequestEntityTooLarge {
		code = "UploadTooLarge"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", log.HTTPPathKey, r.URL.Path, log.ErrorCodeKey, code, err)
	} else {
		s.logger.Debug("request rejected", log.HTTPPathKey, r.URL.Path, log.ErrorCodeKey, code, err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

// upload reads the dataset from the multipart "file" field.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, error) {
	limit := s.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.NewValidationError(uploadField, "expected a multipart upload: "+err.Error(), nil)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, errors.NewValidationError(uploadField, "missing dataset upload", nil)
	}
	defer file.Close()
	return dataset.Load(file, header.Filename)
}

// number renders NaN as JSON null.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type previewResponse struct {
	Columns   []string          `json:"columns"`
	Kinds     map[string]string `json:"kinds"`
	Rows      [][]string        `json:"rows"`
	TotalRows int               `json:"total_rows"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	n := 5
	if raw := r.URL.Query().Get("rows"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.fail(w, r, errors.NewValidationError("rows", "must be a positive integer", raw))
			return
		}
		n = v
	}
	ds, err := s.upload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	head := ds.Head(n)
	resp := previewResponse{
		Columns:   ds.Names(),
		Kinds:     make(map[string]string, ds.NumCols()),
		Rows:      make([][]string, head.NumRows()),
		TotalRows: ds.NumRows(),
	}
	for _, c := range ds.Columns {
		resp.Kinds[c.Name] = c.Kind.String()
	}
	for i := range resp.Rows {
		resp.Rows[i] = head.Row(i)
	}
	writeJSON(w, http.StatusOK, resp)
}

type summaryJSON struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Q25    *float64 `json:"25%"`
	Q50    *float64 `json:"50%"`
	Q75    *float64 `json:"75%"`
	Max    *float64 `json:"max"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	ds, err := s.upload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := []summaryJSON{}
	for _, sm := range ds.Describe() {
		out = append(out, summaryJSON{
			Column: sm.Column,
			Count:  sm.Count,
			Mean:   number(sm.Mean),
			Std:    number(sm.Std),
			Min:    number(sm.Min),
			Q25:    number(sm.Q25),
			Q50:    number(sm.Q50),
			Q75:    number(sm.Q75),
			Max:    number(sm.Max),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": out})
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	ds, err := s.upload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	corr := ds.Correlation()
	matrix := make([][]*float64, len(corr.Names))
	for i := range matrix {
		matrix[i] = make([]*float64, len(corr.Names))
		for j := range matrix[i] {
			matrix[i][j] = number(corr.At(i, j))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": corr.Names, "matrix": matrix})
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "png"
	}
	contentType, ok := contentTypes[format]
	if !ok {
		s.fail(w, r, errors.NewValidationError("format", "must be one of png, svg, pdf", format))
		return
	}
	var columns []string
	if raw := q.Get("columns"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				columns = append(columns, c)
			}
		}
	}

	ds, err := s.upload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fig, err := viz.Plot(ds, viz.Kind(q.Get("kind")), columns...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := fig.WriteTo(&buf, format); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type candidateJSON struct {
	Model      string   `json:"model"`
	Score      *float64 `json:"score,omitempty"`
	Error      string   `json:"error,omitempty"`
	Code       string   `json:"code,omitempty"`
	DurationMs float64  `json:"duration_ms"`
}

type evaluateResponse struct {
	RunID       string          `json:"run_id"`
	Target      string          `json:"target"`
	ProblemType string          `json:"problem_type"`
	Metric      string          `json:"metric"`
	Features    []string        `json:"features"`
	TrainRows   int             `json:"train_rows"`
	TestRows    int             `json:"test_rows"`
	Results     []candidateJSON `json:"results"`
	BestModel   string          `json:"best_model"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		s.fail(w, r, errors.NewValidationError("target", "query parameter is required", target))
		return
	}
	ds, err := s.upload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	pipeline := s.cfg.Pipeline(
		automl.WithObserver(s.metrics.ObserveCandidate),
		automl.WithLogger(s.logger.With(log.ComponentKey, "automl.runner")),
	)
	report, err := pipeline.Run(r.Context(), ds, target)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordEvaluation(report.ProblemType)

	resp := evaluateResponse{
		RunID:       report.RunID,
		Target:      report.Target,
		ProblemType: report.ProblemType.String(),
		Metric:      report.Result.Metric,
		Features:    report.Features,
		TrainRows:   report.TrainRows,
		TestRows:    report.TestRows,
		BestModel:   report.Best,
	}
	for _, e := range report.Result.Entries() {
		c := candidateJSON{Model: e.Name, DurationMs: float64(e.Duration.Microseconds()) / 1000}
		if e.OK() {
			c.Score = number(e.Score)
		} else {
			c.Error = e.Err.Error()
			c.Code = errors.KindOf(e.Err)
		}
		resp.Results = append(resp.Results, c)
	}
	writeJSON(w, http.StatusOK, resp)
}
