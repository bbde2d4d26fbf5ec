package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"orderwatch/internal/domain"
)

func TestSendPostsToChat(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("123:abc", "-1001")
	n.apiBase = server.URL
	n.client = server.Client()

	if err := n.Send(context.Background(), "Orders stuck in processing: 102"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if !strings.HasPrefix(gotPath, "/bot123:abc/") {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChat != "-1001" {
		t.Fatalf("unexpected chat id: %s", gotChat)
	}
	if gotText != "Orders stuck in processing: 102" {
		t.Fatalf("unexpected text: %s", gotText)
	}
}

func TestSendNonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "flood control", http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := NewNotifier("123:abc", "-1001")
	n.apiBase = server.URL
	n.client = server.Client()

	err := n.Send(context.Background(), "hello")
	if !errors.Is(err, domain.ErrNotifier) {
		t.Fatalf("expected ErrNotifier, got %v", err)
	}
}

func TestSendMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "")
	if err := n.Send(context.Background(), "hello"); !errors.Is(err, domain.ErrNotifier) {
		t.Fatalf("expected ErrNotifier for missing credentials, got %v", err)
	}
}
