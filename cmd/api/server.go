package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/graph"
	"github.com/WessleyAI/wessley-diagnostics/engine/matcher"
	"github.com/WessleyAI/wessley-diagnostics/engine/report"
	"github.com/WessleyAI/wessley-diagnostics/engine/service"
	"github.com/WessleyAI/wessley-diagnostics/engine/store"
	"github.com/WessleyAI/wessley-diagnostics/pkg/fn"
	"github.com/WessleyAI/wessley-diagnostics/pkg/metrics"
	"github.com/WessleyAI/wessley-diagnostics/pkg/mid"
	"github.com/WessleyAI/wessley-diagnostics/pkg/resilience"
)

const maxBodyBytes = 64 << 10

// codeFinder looks up components by trouble code. *graph.GraphStore
// satisfies it.
type codeFinder interface {
	ComponentsForCode(ctx context.Context, code string) ([]graph.Component, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type server struct {
	svc        *service.Service
	matcher    *matcher.Matcher
	codes      codeFinder
	limiter    *resilience.WindowLimiter
	metrics    *metrics.Registry
	checks     map[string]pinger
	corsOrigin string
	logger     *slog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/diagnostics", s.handleDiagnose)
	mux.HandleFunc("GET /api/diagnostics", s.handleHistory)
	mux.HandleFunc("PATCH /api/diagnostics/{id}", s.handleUpdate)
	mux.HandleFunc("GET /api/components", s.handleComponents)
	mux.Handle("GET /metrics", s.metrics.Handler())

	requests := s.metrics.Counter("http_requests_total", "HTTP requests served.")
	count := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Inc()
			next.ServeHTTP(w, r)
		})
	}

	return mid.Chain(mux,
		mid.Recover(s.logger),
		mid.OTel("wessley-diagnostics"),
		mid.CORS(s.corsOrigin),
		mid.Owner("/api/health", "/metrics"),
		mid.Logger(s.logger),
		count,
		mid.RateLimit(s.limiter, mid.OwnerOrIP, s.logger, http.MethodPost),
	)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, p := range s.checks {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "dependency", name, "err", err)
			status[name] = "down"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	writeJSON(w, code, status)
}

// diagnoseResponse wraps a result with its save state.
type diagnoseResponse struct {
	report.DiagnosticResult
	Saved bool `json:"saved"`
}

func (s *server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var in domain.DiagnosticInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	owner, _ := mid.OwnerFrom(r.Context())
	out, err := s.svc.Diagnose(r.Context(), owner, in)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, diagnoseResponse{DiagnosticResult: out.Result, Saved: out.Saved})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 100)
	}
	owner, _ := mid.OwnerFrom(r.Context())
	results, err := s.svc.History(r.Context(), owner, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if results == nil {
		results = []report.DiagnosticResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var u report.UpdateFields
	if err := decodeBody(w, r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	owner, _ := mid.OwnerFrom(r.Context())
	res, err := s.svc.Update(r.Context(), r.PathValue("id"), owner, u)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// componentView is the catalog projection served by /api/components.
type componentView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	WarningLevel string   `json:"warning_level"`
	Difficulty   string   `json:"difficulty"`
	PriceMin     float64  `json:"price_min"`
	PriceMax     float64  `json:"price_max"`
	Makes        []string `json:"compatible_makes,omitempty"`
	Codes        []string `json:"diagnostic_codes,omitempty"`
}

func viewOf(c catalog.Component) componentView {
	return componentView{
		ID:           c.ID,
		Name:         c.Name,
		Category:     string(c.Category),
		WarningLevel: string(c.WarningLevel),
		Difficulty:   string(c.LaborHours.Difficulty),
		PriceMin:     c.PriceRange.Min,
		PriceMax:     c.PriceRange.Max,
		Makes:        c.CompatibleMakes,
		Codes:        c.DiagnosticCodes,
	}
}

func (s *server) handleComponents(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("code")))
	vehicleMake := strings.TrimSpace(r.URL.Query().Get("make"))

	var found []catalog.Component
	switch {
	case code != "":
		found = s.componentsForCode(r.Context(), code)
	case q != "":
		found = s.matcher.MatchBySymptoms([]string{q})
		if len(found) == 0 {
			found = s.matcher.SearchFreeText(q)
		}
	case vehicleMake != "":
		found = s.matcher.MatchByMake(domain.CanonicalMake(vehicleMake))
	default:
		found = s.matcher.Catalog().All()
	}
	if vehicleMake != "" {
		canonical := domain.CanonicalMake(vehicleMake)
		found = fn.Filter(found, func(c catalog.Component) bool { return fitsMake(c, canonical) })
	}
	views := fn.Map(found, viewOf)
	writeJSON(w, http.StatusOK, map[string]any{"components": views, "count": len(views)})
}

// componentsForCode asks the graph first and falls back to the in-memory
// catalog when the graph is unavailable.
func (s *server) componentsForCode(ctx context.Context, code string) []catalog.Component {
	if s.codes != nil {
		hits, err := s.codes.ComponentsForCode(ctx, code)
		if err == nil {
			cat := s.matcher.Catalog()
			out := make([]catalog.Component, 0, len(hits))
			for _, h := range hits {
				if c, ok := cat.Get(h.ID); ok {
					out = append(out, c)
				}
			}
			return out
		}
		s.logger.Warn("graph code lookup failed, using catalog", "code", code, "err", err)
	}
	return s.matcher.MatchByTroubleCodes([]string{code})
}

func fitsMake(c catalog.Component, vehicleMake string) bool {
	for _, m := range c.CompatibleMakes {
		if strings.EqualFold(m, vehicleMake) {
			return true
		}
	}
	return false
}

// fail maps service errors to HTTP statuses.
func (s *server) fail(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, report.ErrEmptyUpdate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diagnostic not found")
	case errors.Is(err, service.ErrMissingOwner):
		writeError(w, http.StatusUnauthorized, "missing owner")
	case errors.Is(err, context.Canceled):
		writeError(w, 499, "request cancelled")
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
