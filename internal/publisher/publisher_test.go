package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type fakeTelegram struct {
	mu       sync.Mutex
	calls    []string
	forms    []url.Values
	failSend bool
	// 非 nil 时发送类请求阻塞到通道关闭
	hang chan struct{}
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseForm()

	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.forms = append(f.forms, r.PostForm)
	fail := f.failSend
	hang := f.hang
	f.mu.Unlock()

	if hang != nil && method != "getMe" {
		select {
		case <-hang:
		case <-r.Context().Done():
		}
	}

	switch {
	case method == "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"moviecast_bot"}}`)
	case fail:
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42,"date":0,"chat":{"id":-100,"type":"channel"}}}`)
	}
}

func newTestSender(t *testing.T, channel string) (*TelegramSender, *fakeTelegram) {
	t.Helper()
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint("token", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatalf("NewBotAPIWithAPIEndpoint error: %v", err)
	}
	return NewTelegramSenderWithBot(bot, channel, zerolog.Nop()), fake
}

func TestTelegramSenderSendsPhotoToChannel(t *testing.T) {
	s, fake := newTestSender(t, "@movies")

	err := s.Send(context.Background(), Post{
		PhotoURL:  "https://image.tmdb.org/t/p/w780/a.jpg",
		Caption:   "🎬 *Дюна*",
		ParseMode: "Markdown",
	})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	last := len(fake.calls) - 1
	if fake.calls[last] != "sendPhoto" {
		t.Fatalf("expected sendPhoto, got %v", fake.calls)
	}
	form := fake.forms[last]
	if form.Get("chat_id") != "@movies" || form.Get("photo") != "https://image.tmdb.org/t/p/w780/a.jpg" {
		t.Fatalf("unexpected form: %v", form)
	}
	if form.Get("caption") != "🎬 *Дюна*" || form.Get("parse_mode") != "Markdown" {
		t.Fatalf("caption/parse_mode not sent: %v", form)
	}
}

func TestTelegramSenderTextWithoutPoster(t *testing.T) {
	s, fake := newTestSender(t, "-100123")

	if err := s.Send(context.Background(), Post{Caption: "text only", ParseMode: "HTML"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	last := len(fake.calls) - 1
	if fake.calls[last] != "sendMessage" {
		t.Fatalf("expected sendMessage, got %v", fake.calls)
	}
	if got := fake.forms[last].Get("chat_id"); got != "-100123" {
		t.Fatalf("chat_id = %q", got)
	}
	if got := fake.forms[last].Get("text"); got != "text only" {
		t.Fatalf("text = %q", got)
	}
}

func TestTelegramSenderReturnsAPIError(t *testing.T) {
	s, fake := newTestSender(t, "@movies")
	fake.mu.Lock()
	fake.failSend = true
	fake.mu.Unlock()

	if err := s.Send(context.Background(), Post{Caption: "x"}); err == nil {
		t.Fatalf("expected error from failed send")
	}
}

func TestTelegramSenderHonoursCancelledContext(t *testing.T) {
	s, fake := newTestSender(t, "@movies")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, Post{Caption: "x"}); err == nil {
		t.Fatalf("expected context error")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	for _, c := range fake.calls {
		if c != "getMe" {
			t.Fatalf("no send expected, got %v", fake.calls)
		}
	}
}

func TestTelegramSenderStopsWaitingAtDeadline(t *testing.T) {
	s, fake := newTestSender(t, "@movies")
	hang := make(chan struct{})
	fake.mu.Lock()
	fake.hang = hang
	fake.mu.Unlock()
	// 先于 srv.Close 执行，放开阻塞的请求
	t.Cleanup(func() { close(hang) })

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Send(ctx, Post{PhotoURL: "https://image.tmdb.org/t/p/w780/a.jpg", Caption: "x"})
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Send still blocked after the context deadline")
	}
}

func TestParseChatID(t *testing.T) {
	cases := []struct {
		in      string
		id      int64
		numeric bool
	}{
		{"@movies", 0, false},
		{"-100123", -100123, true},
		{"movies", 0, false},
	}
	for _, c := range cases {
		id, ok := parseChatID(c.in)
		if id != c.id || ok != c.numeric {
			t.Fatalf("parseChatID(%q) = %d, %v; want %d, %v", c.in, id, ok, c.id, c.numeric)
		}
	}
}
