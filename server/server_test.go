package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tanpawarit/loan-assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/loan-assistant/agent/underwriting"
	"github.com/tanpawarit/loan-assistant/pkg/metrics"
)

type fakeChatter struct {
	gotSession string
	gotMessage string
	result     orchestrator.TurnResult
	err        error
}

func (f *fakeChatter) HandleTurn(_ context.Context, sessionID string, message string) (orchestrator.TurnResult, error) {
	f.gotSession = sessionID
	f.gotMessage = message
	return f.result, f.err
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsTurnResult(t *testing.T) {
	t.Parallel()

	emi := 12500.0
	chat := &fakeChatter{result: orchestrator.TurnResult{
		Reply:      "Decision: APPROVED.",
		SessionID:  "s1",
		File:       "sanction_letter_ravi.pdf",
		LastReason: "within limit",
		LastDetails: &underwriting.Details{
			LoanAmount: 150000, PreapprovedLimit: 200000, MaxAllowed: 400000, EMI: &emi,
		},
	}}
	h := New(chat).Handler()

	rec := doRequest(t, h, http.MethodPost, "/chat", `{"message":"12","session_id":"s1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if chat.gotSession != "s1" || chat.gotMessage != "12" {
		t.Fatalf("chatter got (%q, %q)", chat.gotSession, chat.gotMessage)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["reply"] != "Decision: APPROVED." || body["file"] != "sanction_letter_ravi.pdf" {
		t.Fatalf("body = %v", body)
	}
	details, ok := body["last_details"].(map[string]any)
	if !ok || details["emi"] != 12500.0 || details["max_allowed"] != 400000.0 {
		t.Fatalf("last_details = %v", body["last_details"])
	}
}

func TestChatOmitsEmptyOptionalFields(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{result: orchestrator.TurnResult{Reply: "Welcome!", SessionID: orchestrator.DefaultSessionID}}
	rec := doRequest(t, New(chat).Handler(), http.MethodPost, "/chat", `{"message":"hi"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if chat.gotSession != "" {
		t.Fatalf("session passed through = %q, want empty", chat.gotSession)
	}
	for _, key := range []string{"file", "last_reason", "last_details"} {
		if strings.Contains(rec.Body.String(), `"`+key+`"`) {
			t.Fatalf("body %s should omit %q", rec.Body.String(), key)
		}
	}
	if !strings.Contains(rec.Body.String(), `"session_id":"__default__"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestChatRejectsBadJSON(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{}
	rec := doRequest(t, New(chat).Handler(), http.MethodPost, "/chat", `{"message":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatRejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{err: fmt.Errorf("%w: 4096 characters max", orchestrator.ErrInvalidMessage)}
	rec := doRequest(t, New(chat).Handler(), http.MethodPost, "/chat", `{"message":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatTurnErrorIsServiceUnavailable(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{err: errors.New("redis http status=500")}
	rec := doRequest(t, New(chat).Handler(), http.MethodPost, "/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "redis") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "try again") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestDocumentDownload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "letter.pdf"), []byte("%PDF-1.3 test"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	h := New(&fakeChatter{}, WithDocumentDir(dir)).Handler()

	rec := doRequest(t, h, http.MethodGet, "/documents/letter.pdf", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "letter.pdf") {
		t.Fatalf("content disposition = %q", got)
	}

	for _, target := range []string{"/documents/notes.txt", "/documents/missing.pdf", "/documents/..%2Fletter.pdf"} {
		if rec := doRequest(t, h, http.MethodGet, target, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestDocumentName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{raw: "sanction_letter_ravi.pdf", want: true},
		{raw: "LETTER.PDF", want: true},
		{raw: "../etc/passwd.pdf", want: false},
		{raw: `..\x.pdf`, want: false},
		{raw: ".hidden.pdf", want: false},
		{raw: "letter.txt", want: false},
		{raw: "", want: false},
	}
	for _, tt := range tests {
		if _, ok := documentName(tt.raw); ok != tt.want {
			t.Fatalf("documentName(%q) ok = %v, want %v", tt.raw, ok, tt.want)
		}
	}
}

func TestDocumentsDisabledWithoutDir(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, New(&fakeChatter{}).Handler(), http.MethodGet, "/documents/letter.pdf", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, New(&fakeChatter{}).Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHealthzReportsFailingCheck(t *testing.T) {
	t.Parallel()

	h := New(&fakeChatter{}, WithHealthCheck(func(context.Context) error {
		return errors.New("redis unreachable")
	})).Handler()

	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "redis") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncDecision("APPROVED", "within_preapproved")

	rec := doRequest(t, New(&fakeChatter{}, WithGatherer(reg)).Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `loan_decisions_total{decision="APPROVED",rule="within_preapproved"} 1`) {
		t.Fatalf("metrics body missing decision counter:\n%s", rec.Body.String())
	}
}
