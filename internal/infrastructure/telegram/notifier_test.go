package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"NewsDesk/internal/config"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("chat_id") != "-100" {
			t.Errorf("unexpected chat id %q", r.PostForm.Get("chat_id"))
		}
		mu.Lock()
		texts = append(texts, r.PostForm.Get("text"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "TOKEN", ChatID: "-100"}, server.Client()).WithBaseURL(server.URL)
	if err := n.PublishDigest(context.Background(), "NewsDesk batch [gwangju]\n- a: published (grade A, ratio 0.91)"); err != nil {
		t.Fatalf("PublishDigest returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 1 || !strings.Contains(texts[0], "a: published") {
		t.Fatalf("unexpected messages: %v", texts)
	}
}

func TestPublishDigestReportsAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "TOKEN", ChatID: "1"}, server.Client()).WithBaseURL(server.URL)
	err := n.PublishDigest(context.Background(), "digest")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestPublishDigestMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier(config.TelegramConfig{}, nil).PublishDigest(context.Background(), "x"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("가나다\n", 10)
	parts := splitMessage(text, 8)
	if len(parts) < 4 {
		t.Fatalf("expected several parts, got %v", parts)
	}
	for _, p := range parts {
		if len([]rune(p)) > 8 {
			t.Fatalf("part exceeds limit: %q", p)
		}
	}
	if strings.Join(parts, "\n") != strings.TrimSpace(text) {
		t.Fatalf("split lost content: %q", parts)
	}
	if splitMessage("  ", 8) != nil {
		t.Fatalf("blank text must yield no parts")
	}
}
