package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/expansion-evaluator/internal/evaluator"
	"github.com/spigell/expansion-evaluator/internal/evidence"
)

const (
	retryAfterSeconds = 30
	maxRequestBytes   = 1 << 20
)

// Evaluations runs store evaluations.
type Evaluations interface {
	Evaluate(ctx context.Context, req evaluator.Request) (*evaluator.Outcome, error)
	Timeout() time.Duration
}

type Server struct {
	evaluations Evaluations
	collector   evaluator.Collector
	adminToken  string
	version     string
	started     time.Time
	now         func() time.Time
	logger      *zap.Logger

	// PublicDetails shows detailed analysis to every caller. Meant for local
	// use; by default only admin token holders see it.
	PublicDetails bool
}

func New(evaluations Evaluations, collector evaluator.Collector, adminToken, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		evaluations: evaluations,
		collector:   collector,
		adminToken:  strings.TrimSpace(adminToken),
		version:     version,
		started:     time.Now(),
		now:         time.Now,
		logger:      logger,
	}
}

// Routes returns a chi.Router serving the evaluation API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(localCORS)

	r.Get("/health", s.health)
	r.Post("/evaluate", s.evaluate)
	r.Post("/api/evaluate", s.evaluate)
	r.Post("/store-info", s.storeInfo)

	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: s.version,
		Uptime:  s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// EvaluationResponse is the /evaluate payload: the report plus the expansion
// store summary and the echoed main store request fields.
type EvaluationResponse struct {
	*evaluator.Report
	EvaluationID  string    `json:"evaluation_id"`
	StoreInfo     StoreInfo `json:"store_info"`
	MainStoreURL  string    `json:"main_store_url"`
	MainStoreType string    `json:"main_store_type"`
}

// NewEvaluationResponse builds the response for outcome. Without detailed the
// report is redacted.
func NewEvaluationResponse(outcome *evaluator.Outcome, detailed bool) EvaluationResponse {
	report := outcome.Report
	if !detailed {
		report = report.Redacted()
	}

	return EvaluationResponse{
		Report:        report,
		EvaluationID:  outcome.EvaluationID,
		StoreInfo:     NewStoreInfo(outcome.Expansion),
		MainStoreURL:  outcome.Request.MainStoreURL,
		MainStoreType: outcome.Request.MainStoreType,
	}
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluator.Request
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}

	outcome, err := s.evaluations.Evaluate(r.Context(), req)
	if err != nil {
		s.writeEvaluationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewEvaluationResponse(outcome, s.authorized(r)))
}

type storeInfoRequest struct {
	URL          string `json:"url"`
	BusinessType string `json:"business_type"`
}

type storeInfoResponse struct {
	Status    string                  `json:"status"`
	StoreInfo StoreInfo               `json:"store_info"`
	Evidence  *evidence.StoreEvidence `json:"evidence,omitempty"`
}

func (s *Server) storeInfo(w http.ResponseWriter, r *http.Request) {
	var req storeInfoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "URL required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.evaluations.Timeout())
	defer cancel()

	ev, err := s.collector.Collect(ctx, evidence.NormalizeURL(req.URL), evidence.ParseBusinessType(req.BusinessType))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = evaluator.ErrTimeout
		} else {
			err = &evaluator.CollectionError{Store: "requested", URL: req.URL, Err: err}
		}
		s.writeEvaluationError(w, r, err)
		return
	}

	resp := storeInfoResponse{Status: "ok", StoreInfo: NewStoreInfo(ev)}
	if s.authorized(r) {
		resp.Evidence = ev
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeEvaluationError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *evaluator.ValidationError
	var collection *evaluator.CollectionError

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, evaluator.ErrTimeout):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, http.StatusGatewayTimeout, "Evaluation timed out, please retry")
	case errors.As(err, &collection):
		if collection.Retryable() {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		}
		writeError(w, http.StatusBadGateway, collection.Error())
	default:
		s.logger.Error("evaluation failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Evaluation failed: "+err.Error())
	}
}

// authorized reports whether the caller may see detailed analysis. Without a
// configured admin token nobody may unless PublicDetails is set.
func (s *Server) authorized(r *http.Request) bool {
	if s.PublicDetails {
		return true
	}
	if s.adminToken == "" {
		return false
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.adminToken)) == 1
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request served",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(started)),
		)
	})
}

func decodeBody(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, target)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
