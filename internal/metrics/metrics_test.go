package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAsk("answered")
	m.ObserveSuperseded()
	m.ObserveStage("llm", time.Second)
	m.ObserveSearch("exact", time.Millisecond)
	m.ObserveRefresh(nil)
	m.ObserveIndex("built", 3, time.Second)

	h := m.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveAsk("answered")
	m.ObserveAsk("answered")
	m.ObserveAsk("cancelled")
	m.ObserveRefresh(errors.New("sts down"))
	m.ObserveRefresh(nil)
	m.ObserveSearch("exact", time.Millisecond)

	if got := testutil.ToFloat64(m.AsksTotal.WithLabelValues("answered")); got != 2 {
		t.Errorf("answered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CredentialRefreshes.WithLabelValues("error")); got != 1 {
		t.Errorf("refresh errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SearchesTotal.WithLabelValues("exact")); got != 1 {
		t.Errorf("exact searches = %v, want 1", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := m.Middleware(func(r *http.Request) string { return "/ask_question" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/ask_question", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/ask_question", "400")); got != 1 {
		t.Errorf("request counter = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "productassist_http_requests_total") {
		t.Errorf("scrape output missing request counter")
	}
}
