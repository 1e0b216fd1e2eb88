package qstash

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishPostsToDestination(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth, gotDedup, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		raw, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDedup = r.Header.Get("Upstash-Deduplication-Id")
		gotBody = string(raw)
		fmt.Fprint(w, `{"messageId":"msg_123"}`)
	}))
	t.Cleanup(server.Close)

	client := MustNew(Config{URL: server.URL + "/", Token: "token"})
	id, err := client.Publish(context.Background(), "https://sms.example.com/send", []byte(`{"to":"+14085551234"}`),
		map[string]string{"Upstash-Deduplication-Id": "dedup-1"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "msg_123" {
		t.Fatalf("Publish() id = %q, want msg_123", id)
	}
	if gotPath != "/v2/publish/https://sms.example.com/send" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotDedup != "dedup-1" {
		t.Fatalf("deduplication header = %q", gotDedup)
	}
	if gotBody != `{"to":"+14085551234"}` {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestPublishHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"unauthorized"}`)
	}))
	t.Cleanup(server.Close)

	client := MustNew(Config{URL: server.URL, Token: "bad"})
	if _, err := client.Publish(context.Background(), "https://sms.example.com/send", nil, nil); err == nil {
		t.Fatal("Publish() error = nil, want error")
	}
}

func TestPublishRequiresDestination(t *testing.T) {
	t.Parallel()

	client := MustNew(Config{URL: "https://qstash.example.com", Token: "token"})
	_, err := client.Publish(context.Background(), "  ", nil, nil)
	if !errors.Is(err, ErrEmptyDestination) {
		t.Fatalf("Publish() error = %v, want ErrEmptyDestination", err)
	}
}

func TestNewClientRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("NewClient() error = nil, want error")
	}
}
