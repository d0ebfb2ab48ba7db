package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ziadkadry99/productassist/internal/advisor"
	"github.com/ziadkadry99/productassist/internal/retriever"
	"github.com/ziadkadry99/productassist/internal/session"
)

const (
	sessionHeader    = "session-id"
	maxBodyBytes     = 1 << 20
	maxSearchQueries = 50
)

type askRequest struct {
	Question     string `json:"question"`
	ClearHistory bool   `json:"clear_history"`
}

type askResponse struct {
	Message                     string            `json:"message"`
	CustomerAttributesRetrieved map[string]any    `json:"customer_attributes_retrieved"`
	TimeToGetAttributes         float64           `json:"time_to_get_attributes"`
	TimeTaken                   float64           `json:"time_taken"`
	Products                    []advisor.Product `json:"products"`
}

type cancelledResponse struct {
	Message  string            `json:"message"`
	Products []advisor.Product `json:"products"`
}

func newAskResponse(res *session.Result) any {
	if res.Cancelled {
		return cancelledResponse{Message: res.Message, Products: []advisor.Product{}}
	}
	attrs := res.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return askResponse{
		Message:                     res.Message,
		CustomerAttributesRetrieved: attrs,
		TimeToGetAttributes:         res.AttributeDuration.Seconds(),
		TimeTaken:                   res.Duration.Seconds(),
		Products:                    res.Products,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
	if sessionID == "" {
		writeError(w, r, session.ErrMissingSessionID)
		return
	}
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, badRequest("question is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	res, err := s.asker.Submit(ctx, sessionID, req.Question, req.ClearHistory)
	if err == nil && res.Cancelled && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errTimeout
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAskResponse(res))
}

type searchRequest struct {
	Queries []string `json:"queries"`
	K       int      `json:"k"`
}

type searchHit struct {
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Similarity float32           `json:"similarity"`
	Exact      bool              `json:"exact"`
	Fields     map[string]string `json:"fields"`
}

type searchResponse struct {
	Results [][]searchHit `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, r, badRequest("queries is required"))
		return
	}
	if len(req.Queries) > maxSearchQueries {
		writeError(w, r, badRequest("at most %d queries per request", maxSearchQueries))
		return
	}
	k := req.K
	if k <= 0 {
		k = s.cfg.TopK
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	results := s.searcher.ParallelSearch(ctx, req.Queries, k)

	resp := searchResponse{Results: make([][]searchHit, len(results))}
	for i, matches := range results {
		resp.Results[i] = toHits(matches)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toHits(matches []retriever.Match) []searchHit {
	hits := make([]searchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, searchHit{
			Code:       m.Document.Code(),
			Name:       m.Document.Name(),
			Similarity: m.Similarity,
			Exact:      m.Exact,
			Fields:     m.Document.Fields,
		})
	}
	return hits
}
