package assess

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/policyvet/apperr"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultDataset(t *testing.T) {
	// WHAT: The embedded dataset parses and every citation resolves to a source.
	// WHY: A broken dataset would only surface at the first analysis.
	d, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(d.Obligations) != 10 {
		t.Errorf("obligations = %d, want 10", len(d.Obligations))
	}
	o, ok := d.Obligation("OBL-DPIA-RECRUIT-001")
	if !ok {
		t.Fatal("OBL-DPIA-RECRUIT-001 missing")
	}
	if o.Strength != "must" || len(o.WhatGoodLooksLike) == 0 || len(o.SourceCitations) != 3 {
		t.Errorf("unexpected obligation: %+v", o)
	}
	if s, ok := d.Source("ICO-AI-DP-2024"); !ok || s.IssuingBody != "ICO" {
		t.Errorf("source = %+v, %v", s, ok)
	}
}

func TestParse_UnknownSource(t *testing.T) {
	// WHAT: A citation of an unknown source fails parsing.
	// WHY: Exports list source ids; dangling ones would be unexplained.
	data := []byte(`
sources: []
obligations:
  - obligation_id: X
    title: x
    source_citations:
      - source_id: NOPE
`)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error")
	}
}

func TestApplicable(t *testing.T) {
	// WHAT: Use-case intersection and risk level select obligations; risk defaults to medium.
	// WHY: Only obligations relevant to the organisation are assessed.
	d, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	ids := func(os []Obligation) map[string]bool {
		m := map[string]bool{}
		for _, o := range os {
			m[o.ID] = true
		}
		return m
	}

	high := ids(Applicable(d.Obligations, Profile{UseCases: []string{"recruitment_ai"}, RiskLevel: "high"}))
	if !high["OBL-DPIA-RECRUIT-001"] || !high["OBL-HUMAN-OVERSIGHT-001"] {
		t.Errorf("high-risk recruitment missing DPIA or oversight: %v", high)
	}

	medium := ids(Applicable(d.Obligations, Profile{UseCases: []string{"recruitment_ai"}}))
	if medium["OBL-DPIA-RECRUIT-001"] {
		t.Error("DPIA is high-risk only; default risk is medium")
	}
	if !medium["OBL-TRANSPARENCY-RECRUIT-001"] {
		t.Error("transparency applies at medium risk")
	}

	low := ids(Applicable(d.Obligations, Profile{UseCases: []string{"content_generation"}, RiskLevel: "low"}))
	if len(low) != 2 || !low["OBL-LAWFUL-BASIS-001"] || !low["OBL-TRAINING-001"] {
		t.Errorf("low-risk content generation = %v", low)
	}

	if got := Applicable(d.Obligations, Profile{UseCases: []string{"internal_tools"}}); len(got) != 0 {
		t.Errorf("internal_tools matched %d obligations", len(got))
	}

	anyRisk := []Obligation{{ID: "A", AppliesWhen: AppliesWhen{UseCases: []string{"profiling"}}}}
	if got := Applicable(anyRisk, Profile{UseCases: []string{"profiling"}, RiskLevel: "low"}); len(got) != 1 {
		t.Error("obligation without risk levels must apply at any level")
	}
}

func TestPrepare(t *testing.T) {
	// WHAT: Empty content or obligations are invalid; long content is truncated to the limit.
	// WHY: The service accepts at most 100 000 characters and a non-empty obligation list.
	obls := []Obligation{{ID: "A"}}

	if _, err := Prepare("  ", obls, 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("empty content: %v", err)
	}
	if _, err := Prepare("policy", nil, 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("no obligations: %v", err)
	}

	exact := strings.Repeat("a", DefaultMaxTextLength)
	req, err := Prepare(exact, obls, 0)
	if err != nil {
		t.Fatal(err)
	}
	if req.Truncated || req.PolicyContent != exact {
		t.Errorf("at limit: truncated=%v", req.Truncated)
	}

	req, err = Prepare(exact+"b", obls, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !req.Truncated || len(req.PolicyContent) != DefaultMaxTextLength {
		t.Errorf("over limit: truncated=%v len=%d", req.Truncated, len(req.PolicyContent))
	}
}

func TestTruncate_Runes(t *testing.T) {
	// WHAT: Truncation counts characters, never splitting a multi-byte rune.
	// WHY: The limit is in characters and the result must stay valid UTF-8.
	s := strings.Repeat("é", 10)
	got, cut := Truncate(s, 4)
	if !cut || got != "éééé" {
		t.Errorf("Truncate = %q, %v", got, cut)
	}
	if !utf8.ValidString(got) {
		t.Error("invalid UTF-8")
	}
	if got, cut := Truncate(s, 10); cut || got != s {
		t.Errorf("Truncate at length = %q, %v", got, cut)
	}
}

func TestParseItems(t *testing.T) {
	// WHAT: Plain, fenced and wrapped answers decode; schema violations fail.
	// WHY: The service answers free text that is expected to hold JSON.
	plain := `[{"obligation_id":"A","status":"FULL","findings":"ok","policy_match":"quote","gaps":[],"recommendation":"none"}]`
	fenced := "```json\n" + plain + "\n```"
	wrapped := `{"results":` + plain + `}`
	byID := `[{"id":"A","status":"PARTIAL"}]`

	for name, in := range map[string]string{"plain": plain, "fenced": fenced, "wrapped": wrapped, "id": byID} {
		items, err := ParseItems([]byte(in))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if len(items) != 1 || items[0].key() != "A" {
			t.Errorf("%s: items = %+v", name, items)
		}
	}

	for name, in := range map[string]string{
		"not json":   "I cannot help with that",
		"bad status": `[{"obligation_id":"A","status":"MOSTLY"}]`,
		"no id":      `[{"status":"FULL"}]`,
		"gaps type":  `[{"id":"A","gaps":"none"}]`,
		"object":     `{"answer":[]}`,
	} {
		if _, err := ParseItems([]byte(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestMerge_Defaults(t *testing.T) {
	// WHAT: Every obligation gets a result; missing items and fields take the defaults.
	// WHY: The report must cover every applicable obligation even when the service skips some.
	obls := []Obligation{{ID: "A", Title: "First"}, {ID: "B", Title: "Second"}}
	match := "we review decisions"
	items := []Item{
		{ObligationID: "A", Status: StatusFull, Findings: "covered", PolicyMatch: &match, Gaps: []string{}, Recommendation: "keep"},
		{ID: "Z", Status: StatusFull},
	}
	res := Merge(obls, items)
	if len(res) != 2 {
		t.Fatalf("results = %d", len(res))
	}
	if res[0].Status != StatusFull || res[0].Title != "First" || *res[0].PolicyMatch != match || len(res[0].Gaps) != 0 {
		t.Errorf("A = %+v", res[0])
	}
	b := res[1]
	if b.Status != StatusNotMet || b.Findings != DefaultFindings || b.PolicyMatch != nil ||
		len(b.Gaps) != 1 || b.Gaps[0] != DefaultGap || b.Recommendation != DefaultRecommendation {
		t.Errorf("B = %+v", b)
	}
}

func TestScore(t *testing.T) {
	// WHAT: Score is round((full + partial/2) / total * 100).
	// WHY: The headline number of the report.
	rs := func(statuses ...string) []Result {
		var out []Result
		for _, s := range statuses {
			out = append(out, Result{Status: s})
		}
		return out
	}
	tests := []struct {
		in   []Result
		want Stats
	}{
		{nil, Stats{}},
		{rs(StatusFull, StatusPartial, StatusNotMet), Stats{Total: 3, Full: 1, Partial: 1, NotMet: 1, Score: 50}},
		{rs(StatusPartial, StatusNotMet, StatusNotMet), Stats{Total: 3, Partial: 1, NotMet: 2, Score: 17}},
		{rs(StatusFull, StatusFull), Stats{Total: 2, Full: 2, Score: 100}},
	}
	for _, tt := range tests {
		if got := Score(tt.in); got != tt.want {
			t.Errorf("Score(%v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestClient_NotConfigured(t *testing.T) {
	// WHAT: A client without key or endpoint fails with a configuration error before any I/O.
	// WHY: Missing credentials are a server-side fault, not a user one.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	for _, cfg := range []Config{{Endpoint: srv.URL}, {APIKey: "k"}} {
		cfg.Logger = quietLogger()
		c := NewClient(cfg)
		_, err := c.Analyze(context.Background(), "policy", []Obligation{{ID: "A"}})
		if !errors.Is(err, apperr.ErrConfiguration) {
			t.Errorf("err = %v, want configuration", err)
		}
		if apperr.HTTPStatus(err) != http.StatusInternalServerError {
			t.Errorf("status = %d", apperr.HTTPStatus(err))
		}
	}
	if hits.Load() != 0 {
		t.Errorf("service hit %d times", hits.Load())
	}
}

func TestClient_Analyze(t *testing.T) {
	// WHAT: Analyze posts the prepared request with the bearer key and merges the answer.
	// WHY: End-to-end contract with the assessment service.
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("method=%s auth=%q", r.Method, r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		io.WriteString(w, "```json\n[{\"obligation_id\":\"A\",\"status\":\"PARTIAL\",\"gaps\":[\"no DPIA\"]}]\n```")
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "secret", Model: "m1", MaxTextLength: 10, Logger: quietLogger()})
	obls := []Obligation{{ID: "A", Title: "First"}, {ID: "B", Title: "Second"}}
	a, err := c.Analyze(context.Background(), "0123456789abcdef", obls)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.PolicyContent != "0123456789" || got.Model != "m1" || len(got.Obligations) != 2 {
		t.Errorf("request = %+v", got)
	}
	if !a.Truncated {
		t.Error("expected truncated")
	}
	if a.Results[0].Status != StatusPartial || a.Results[0].Gaps[0] != "no DPIA" || a.Results[1].Status != StatusNotMet {
		t.Errorf("results = %+v", a.Results)
	}
	if a.Score != (Stats{Total: 2, Partial: 1, NotMet: 1, Score: 25}) {
		t.Errorf("score = %+v", a.Score)
	}
}

func TestClient_Failures(t *testing.T) {
	// WHAT: Upstream errors and unparseable answers are transport failures; slowness is a timeout.
	// WHY: The API maps these to 502 and 504.
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    error
		msg     string
	}{
		{"upstream 500", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, 0, apperr.ErrTransport, "Assessment service returned 500 Internal Server Error"},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "Sorry, I can't do that.")
		}, 0, apperr.ErrTransport, "Failed to parse assessment response"},
		{"slow", func(_ http.ResponseWriter, r *http.Request) {
			// The request context only ends once the body is read, so bound the wait.
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, 100 * time.Millisecond, apperr.ErrFetchTimeout, "Assessment timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := NewClient(Config{Endpoint: srv.URL, APIKey: "k", Timeout: tt.timeout, Logger: quietLogger()})
			_, err := c.Analyze(context.Background(), "policy", []Obligation{{ID: "A"}})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if msg := apperr.Message(err, ""); msg != tt.msg {
				t.Errorf("message = %q", msg)
			}
		})
	}
}
