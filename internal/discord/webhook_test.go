package discord

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendSuccess(t *testing.T) {
	var (
		gotMethod string
		gotCT     string
		gotBody   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(WithHTTPClient(srv.Client()))
	p := Payload{Username: "alice (#osu)", Content: "hi", AllowedMentions: AllowedMentions{Parse: []string{}}, Embeds: []Embed{}}

	if err := w.Send(context.Background(), srv.URL, p); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("method = %q", gotMethod)
	}
	if gotCT != "application/json" {
		t.Fatalf("content type = %q", gotCT)
	}

	var decoded Payload
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if decoded.Username != "alice (#osu)" || decoded.Content != "hi" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestSendRejectedLogsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"embeds":["0: fields must be 25 or fewer in length"]}`))
	}))
	defer srv.Close()

	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	w := NewWebhook(WithHTTPClient(srv.Client()), WithLogger(logger))
	err := w.Send(context.Background(), srv.URL, Payload{})
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if !strings.Contains(err.Error(), "webhook status") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(logBuf.String(), "fields must be 25 or fewer") {
		t.Fatalf("rejection body not logged: %s", logBuf.String())
	}
}

func TestSendConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listening anymore

	w := NewWebhook()
	if err := w.Send(context.Background(), url, Payload{}); err == nil {
		t.Fatal("expected error on refused connection")
	}
}
