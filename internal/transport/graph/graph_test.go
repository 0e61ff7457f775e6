package graph

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const tokenJSON = `{"access_token": "test-token", "expires_in": 3600}`

type sendMailRecorder struct {
	tokenCalls int
	sendCalls  int
	lastAuth   string
	lastBody   []byte
	// status returned per send attempt; the last entry repeats.
	statuses []int
}

func (r *sendMailRecorder) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, req *http.Request) {
		r.tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, tokenJSON)
	})
	mux.HandleFunc("/users/", func(w http.ResponseWriter, req *http.Request) {
		r.lastAuth = req.Header.Get("Authorization")
		r.lastBody, _ = io.ReadAll(req.Body)
		status := http.StatusAccepted
		if r.sendCalls < len(r.statuses) {
			status = r.statuses[r.sendCalls]
		} else if len(r.statuses) > 0 {
			status = r.statuses[len(r.statuses)-1]
		}
		r.sendCalls++
		w.WriteHeader(status)
	})
	return mux
}

func newTestSender(t *testing.T, rec *sendMailRecorder) (*Sender, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	cfg := SenderConfig{TenantID: "tid", ClientID: "cid", ClientSecret: "secret"}
	return newWithOverrides(cfg, srv.URL, srv.URL+"/token", srv.Client()), srv
}

func TestName(t *testing.T) {
	t.Parallel()
	s := New(SenderConfig{TenantID: "tid", ClientID: "cid", ClientSecret: "secret"})
	if got := s.Name(); got != "msgraph" {
		t.Errorf("Name(): got %q, want %q", got, "msgraph")
	}
}

func TestSend_RawMIME(t *testing.T) {
	t.Parallel()

	rec := &sendMailRecorder{}
	s, _ := newTestSender(t, rec)

	raw := []byte("From: \"a\" <fwd@yourdomain.com>\r\nTo: one@example.net\r\nSubject: hi\r\n\r\nbody\r\n")
	err := s.Send(context.Background(), []string{"one@example.net"}, "fwd@yourdomain.com", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.sendCalls != 1 {
		t.Errorf("send calls: got %d, want 1", rec.sendCalls)
	}
	if rec.lastAuth != "Bearer test-token" {
		t.Errorf("Authorization: got %q, want bearer token", rec.lastAuth)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(rec.lastBody))
	if err != nil {
		t.Fatalf("request body is not base64: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Errorf("decoded MIME: got %q, want %q", decoded, raw)
	}
}

func TestSend_AddressesResolvedTargets(t *testing.T) {
	t.Parallel()

	rec := &sendMailRecorder{}
	s, _ := newTestSender(t, rec)

	// None of the resolved targets appear in the message's own address
	// headers: delivery must follow the targets, not the original
	// recipients, or the copy loops back to the controlled domain.
	raw := []byte("From: \"a\" <fwd@yourdomain.com>\r\n" +
		"To: original@yourdomain.com\r\n" +
		"Cc: other@yourdomain.com\r\n" +
		"Subject: hi\r\n" +
		"\r\n" +
		"body\r\n")
	targets := []string{"final@example.net", "second@example.net"}

	err := s.Send(context.Background(), targets, "fwd@yourdomain.com", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(string(rec.lastBody))
	if err != nil {
		t.Fatalf("request body is not base64: %v", err)
	}
	sent := string(decoded)

	if !strings.Contains(sent, "To: final@example.net, second@example.net\r\n") {
		t.Errorf("resolved targets missing from recipient headers:\n%s", sent)
	}
	if strings.Contains(sent, "original@yourdomain.com") {
		t.Errorf("original recipient still addressed:\n%s", sent)
	}
	if strings.Contains(sent, "Cc:") {
		t.Errorf("Cc header should be dropped:\n%s", sent)
	}
	if !strings.Contains(sent, "Subject: hi\r\n") || !strings.Contains(sent, "\r\n\r\nbody\r\n") {
		t.Errorf("unrelated headers or body not preserved:\n%s", sent)
	}
}

func TestSend_RefreshesTokenOn401(t *testing.T) {
	t.Parallel()

	rec := &sendMailRecorder{statuses: []int{http.StatusUnauthorized, http.StatusAccepted}}
	s, _ := newTestSender(t, rec)

	err := s.Send(context.Background(), []string{"one@example.net"}, "fwd@yourdomain.com",
		[]byte("To: one@example.net\r\n\r\nbody\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.sendCalls != 2 {
		t.Errorf("send calls: got %d, want 2 (one re-send after refresh)", rec.sendCalls)
	}
	if rec.tokenCalls != 2 {
		t.Errorf("token calls: got %d, want 2 (initial + forced refresh)", rec.tokenCalls)
	}
}

func TestSend_ServerErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	rec := &sendMailRecorder{statuses: []int{http.StatusInternalServerError}}
	s, _ := newTestSender(t, rec)

	err := s.Send(context.Background(), []string{"one@example.net"}, "fwd@yourdomain.com",
		[]byte("To: one@example.net\r\n\r\nbody\r\n"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if rec.sendCalls != 1 {
		t.Errorf("send calls: got %d, want 1", rec.sendCalls)
	}
	if !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("error should name the status: %v", err)
	}
}

func TestSend_PermanentErrorReported(t *testing.T) {
	t.Parallel()

	rec := &sendMailRecorder{statuses: []int{http.StatusBadRequest}}
	s, _ := newTestSender(t, rec)

	err := s.Send(context.Background(), []string{"one@example.net"}, "fwd@yourdomain.com",
		[]byte("To: one@example.net\r\n\r\nbody\r\n"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "permanent") {
		t.Errorf("error should be classified permanent: %v", err)
	}
}
