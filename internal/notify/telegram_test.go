package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ritim-app/ritim/internal/domain"
)

const testToken = "123456789:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// fakeBotAPI answers sendMessage and records the requests.
type fakeBotAPI struct {
	mu       sync.Mutex
	messages []map[string]any
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.messages = append(f.messages, body)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
}

func TestNewTelegram_InvalidToken(t *testing.T) {
	if _, err := NewTelegram(TelegramConfig{Token: "nope"}); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestTelegram_Send(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	tg, err := NewTelegram(TelegramConfig{
		Token:     testToken,
		APIServer: srv.URL,
		Chats:     map[string]int64{"alice": 42},
	})
	if err != nil {
		t.Fatalf("NewTelegram() error: %v", err)
	}

	err = tg.Send(context.Background(), domain.Notification{
		UserID: "alice", Type: domain.NotifyAchievement, Title: "🎯 First Step", Body: "Complete your first task",
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(api.messages))
	}
	msg := api.messages[0]
	if msg["chat_id"] != float64(42) {
		t.Errorf("expected chat 42, got %v", msg["chat_id"])
	}
	if msg["text"] != "🎯 First Step\nComplete your first task" {
		t.Errorf("unexpected text %q", msg["text"])
	}
}

func TestTelegram_SkipsUnknownUsers(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	tg, err := NewTelegram(TelegramConfig{Token: testToken, APIServer: srv.URL})
	if err != nil {
		t.Fatalf("NewTelegram() error: %v", err)
	}
	if err := tg.Send(context.Background(), domain.Notification{UserID: "bob", Title: "Level 2"}); err != nil {
		t.Errorf("unknown user should be skipped, got %v", err)
	}
	if len(api.messages) != 0 {
		t.Errorf("expected no request, got %d", len(api.messages))
	}
}

func TestTelegram_ChatFor(t *testing.T) {
	tg := &Telegram{chats: map[string]int64{"alice": 7}}
	tests := []struct {
		user string
		id   int64
		ok   bool
	}{
		{"alice", 7, true},
		{"123456", 123456, true},
		{"bob", 0, false},
	}
	for _, tt := range tests {
		id, ok := tg.chatFor(tt.user)
		if id != tt.id || ok != tt.ok {
			t.Errorf("chatFor(%q) = %d, %v; want %d, %v", tt.user, id, ok, tt.id, tt.ok)
		}
	}
}
