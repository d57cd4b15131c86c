package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestCodeClient_LatestCode_Success(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"123456","platform":"instagram","timestamp":"2025-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewCodeClient(srv.URL + "/")

	got, err := c.LatestCode(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("LatestCode() error: %v", err)
	}
	if got == nil || got.Code != "123456" || got.Platform != "instagram" {
		t.Fatalf("unexpected code: %+v", got)
	}
	if gotPath != "/get_code/+15551234567" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestCodeClient_LatestCode_NoCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":null,"message":"No codes found"}`))
	}))
	defer srv.Close()

	got, err := NewCodeClient(srv.URL).LatestCode(context.Background(), "+1")
	if err != nil {
		t.Fatalf("LatestCode() error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil code, got %+v", got)
	}
}

func TestCodeClient_InBandError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"database is locked"}`))
	}))
	defer srv.Close()

	_, err := NewCodeClient(srv.URL).ConsumeCode(context.Background(), "+1", "tiktok")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "database is locked") {
		t.Fatalf("expected server error text, got: %v", err)
	}
}

func TestCodeClient_Non200_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer srv.Close()

	_, err := NewCodeClient(srv.URL).LatestCode(context.Background(), "+1")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "unexpected status code: 503") || !strings.Contains(msg, `body="down"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCodeClient_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("THIS IS NOT JSON"))
	}))
	defer srv.Close()

	_, err := NewCodeClient(srv.URL).LatestCode(context.Background(), "+1")
	if err == nil || !strings.Contains(err.Error(), "failed to decode json") {
		t.Fatalf("expected decode error, got: %v", err)
	}
}

func TestCodeClient_ConsumeCode_Path(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"code":"4321","platform":"tiktok","timestamp":"t"}`))
	}))
	defer srv.Close()

	got, err := NewCodeClient(srv.URL).ConsumeCode(context.Background(), "+1555", "tiktok")
	if err != nil {
		t.Fatalf("ConsumeCode() error: %v", err)
	}
	if got.Code != "4321" {
		t.Fatalf("unexpected code: %+v", got)
	}
	if gotPath != "/get_code/+1555/tiktok" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestCodeClient_Messages(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"phone":"+1","messages":[
			{"message":"code 1234","timestamp":"t2","extracted_code":"1234","platform":"unknown"},
			{"message":"hi","timestamp":"t1","extracted_code":null,"platform":"unknown"}]}`))
	}))
	defer srv.Close()

	msgs, err := NewCodeClient(srv.URL).Messages(context.Background(), "+1", 5)
	if err != nil {
		t.Fatalf("Messages() error: %v", err)
	}
	if gotQuery != "limit=5" {
		t.Fatalf("unexpected query: %q", gotQuery)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ExtractedCode == nil || *msgs[0].ExtractedCode != "1234" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].ExtractedCode != nil {
		t.Fatalf("expected nil code on second message")
	}
}

func TestCodeClient_WaitForCode_ConsumesWhenAvailable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"code":null,"message":"No unused codes for instagram"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":"777777","platform":"instagram","timestamp":"t"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := NewCodeClient(srv.URL).WaitForCode(ctx, "+1", "instagram", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForCode() error: %v", err)
	}
	if got.Code != "777777" {
		t.Fatalf("unexpected code: %+v", got)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", calls.Load())
	}
}

func TestCodeClient_WaitForCode_LatestSkipsExisting(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"code":"111111","platform":"unknown","timestamp":"t1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":"222222","platform":"unknown","timestamp":"t2"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := NewCodeClient(srv.URL).WaitForCode(ctx, "+1", "", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForCode() error: %v", err)
	}
	if got.Code != "222222" {
		t.Fatalf("expected the new code, got %+v", got)
	}
}

func TestCodeClient_WaitForCode_ContextDeadline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":null,"message":"No unused codes for tiktok"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewCodeClient(srv.URL).WaitForCode(ctx, "+1", "tiktok", 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got: %v", err)
	}
}

func TestCodeClient_WaitForCode_InvalidInterval(t *testing.T) {
	t.Parallel()

	_, err := NewCodeClient("http://127.0.0.1:1").WaitForCode(context.Background(), "+1", "tiktok", 0)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}
