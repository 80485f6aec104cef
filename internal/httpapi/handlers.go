package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"manifold/internal/domain"
	"manifold/internal/observability"
	"manifold/internal/rag/synth"
	"manifold/internal/version"
)

var errRateLimited = errors.New("rate limit exceeded")

const maxQueryChars = 1000

// searchRequest mirrors spec.md §6's query endpoint request body exactly:
// {query, date?, limit, score_threshold?, filters?}.
type searchRequest struct {
	Query          string            `json:"query"`
	Date           string            `json:"date,omitempty"` // YYYY-MM-DD; empty means no temporal filter
	Limit          int               `json:"limit,omitempty"`
	ScoreThreshold *float64          `json:"score_threshold,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
}

// sourceDTO mirrors spec.md §6's Source shape: {regulation_id, text, score,
// version?, effective_date?, expiry_date?, metadata}.
type sourceDTO struct {
	RegulationID  string            `json:"regulation_id"`
	Text          string            `json:"text"`
	Score         float64           `json:"score"`
	Version       string            `json:"version,omitempty"`
	EffectiveDate string            `json:"effective_date,omitempty"`
	ExpiryDate    string            `json:"expiry_date,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type searchResponse struct {
	Answer   string      `json:"answer"`
	Sources  []sourceDTO `json:"sources"`
	SearchMS int64       `json:"search_time_ms"`
	LLMMS    int64       `json:"llm_time_ms"`
	TotalMS  int64       `json:"total_time_ms"`
}

// errorResponse is the structured non-2xx body spec.md §7 mandates:
// "The client always receives a structured {error_kind, message} body."
type errorResponse struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

const dateLayout = "2006-01-02"

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.Wrap(domain.ValidationError, err))
		return
	}

	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		observability.LoggerWithTrace(r.Context()).Debug().
			RawJSON("body", observability.RedactJSON(body)).
			Msg("malformed search request body")
		respondError(w, http.StatusBadRequest, domain.Wrap(domain.ValidationError, err))
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, domain.Wrap(domain.ValidationError, errors.New("query is required")))
		return
	}
	if utf8.RuneCountInString(req.Query) > maxQueryChars {
		respondError(w, http.StatusBadRequest, domain.Wrap(domain.ValidationError, errors.New("query exceeds 1000 characters")))
		return
	}
	if req.Limit != 0 && (req.Limit < 1 || req.Limit > 50) {
		respondError(w, http.StatusBadRequest, domain.Wrap(domain.ValidationError, errors.New("limit must be between 1 and 50")))
		return
	}
	if req.ScoreThreshold != nil && (*req.ScoreThreshold < 0 || *req.ScoreThreshold > 1) {
		respondError(w, http.StatusBadRequest, domain.Wrap(domain.ValidationError, errors.New("score_threshold must be between 0.0 and 1.0")))
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	opt := synth.Options{TopK: limit, MetadataEq: req.Filters, ScoreThreshold: s.defaultScoreThresh}
	if req.ScoreThreshold != nil {
		opt.ScoreThreshold = *req.ScoreThreshold
	}
	if req.Date != "" {
		t, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, domain.Wrap(domain.ValidationError, err))
			return
		}
		opt.AsOf = &t
	}

	ans, err := s.synth.Query(r.Context(), req.Query, opt)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}

	sources := make([]sourceDTO, len(ans.Sources))
	for i, h := range ans.Sources {
		sources[i] = sourceDTO{
			RegulationID: h.RegulationID,
			Text:         h.Text,
			Score:        h.Score,
			Version:      h.Version,
			Metadata:     h.Metadata,
		}
		if h.EffectiveDate != nil {
			sources[i].EffectiveDate = h.EffectiveDate.Format(dateLayout)
		}
		if h.ExpiryDate != nil {
			sources[i].ExpiryDate = h.ExpiryDate.Format(dateLayout)
		}
	}
	respondJSON(w, http.StatusOK, searchResponse{
		Answer:   ans.Answer,
		Sources:  sources,
		SearchMS: ans.SearchMS,
		LLMMS:    ans.LLMMS,
		TotalMS:  ans.TotalMS,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError always emits the structured {error_kind, message} body
// spec.md §7 mandates for every non-2xx response.
func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{ErrorKind: string(errorKind(err)), Message: err.Error()})
}

// errorKind recovers the domain.ErrorKind from err, defaulting to
// ValidationError for errors not already tagged (e.g. a bare
// json.Unmarshal failure wrapped by the caller before this point).
func errorKind(err error) domain.ErrorKind {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return domain.ValidationError
}

// statusFromError maps the error-taxonomy kinds to HTTP status codes per
// the error-handling design's surface/recovery table.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ValidationError):
		return http.StatusBadRequest
	case errors.Is(err, domain.AuthError):
		return http.StatusUnauthorized
	case errors.Is(err, domain.RateLimitError):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.CancelledError):
		return http.StatusRequestTimeout
	case errors.Is(err, domain.EmbeddingOracleError), errors.Is(err, domain.LLMOracleError):
		return http.StatusBadGateway
	case errors.Is(err, domain.StoreError):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
