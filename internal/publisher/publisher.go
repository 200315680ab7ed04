package publisher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// 单次 Bot API 请求的超时，ctx 更早到期时以 ctx 为准
const sendTimeout = 30 * time.Second

// Post 一条待发送的频道消息；PhotoURL 为空时发送纯文本
type Post struct {
	PhotoURL  string
	Caption   string
	ParseMode string
}

type Sender interface {
	Send(ctx context.Context, p Post) error
}

// TelegramSender 通过 Bot API 向频道发送图片或文本
type TelegramSender struct {
	bot     *tgbotapi.BotAPI
	channel string
	logger  zerolog.Logger
}

func NewTelegramSender(token, channel string, logger zerolog.Logger) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	return NewTelegramSenderWithBot(bot, channel, logger), nil
}

func NewTelegramSenderWithBot(bot *tgbotapi.BotAPI, channel string, logger zerolog.Logger) *TelegramSender {
	return &TelegramSender{bot: bot, channel: channel, logger: logger}
}

func (s *TelegramSender) Send(ctx context.Context, p Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := s.chattable(p)

	type result struct {
		sent tgbotapi.Message
		err  error
	}
	// bot.Send 不接受 ctx，放到 goroutine 里等待，ctx 到期后直接返回
	done := make(chan result, 1)
	go func() {
		sent, err := s.bot.Send(msg)
		done <- result{sent: sent, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram: send to %s: %w", s.channel, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("telegram: send to %s: %w", s.channel, r.err)
		}
		s.logger.Info().Int("message_id", r.sent.MessageID).Str("channel", s.channel).Msg("message sent")
		return nil
	}
}

// chattable 频道既可以是 @username，也可以是数字 chat id
func (s *TelegramSender) chattable(p Post) tgbotapi.Chattable {
	chatID, numeric := parseChatID(s.channel)

	if p.PhotoURL != "" {
		var photo tgbotapi.PhotoConfig
		if numeric {
			photo = tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(p.PhotoURL))
		} else {
			photo = tgbotapi.NewPhotoToChannel(s.channel, tgbotapi.FileURL(p.PhotoURL))
		}
		photo.Caption = p.Caption
		photo.ParseMode = p.ParseMode
		return photo
	}

	var msg tgbotapi.MessageConfig
	if numeric {
		msg = tgbotapi.NewMessage(chatID, p.Caption)
	} else {
		msg = tgbotapi.NewMessageToChannel(s.channel, p.Caption)
	}
	msg.ParseMode = p.ParseMode
	return msg
}

func parseChatID(channel string) (int64, bool) {
	if strings.HasPrefix(channel, "@") {
		return 0, false
	}
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// LogSender 只记录日志不发送，用于 dry-run
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, p Post) error {
	s.Logger.Info().Str("photo", p.PhotoURL).Str("parse_mode", p.ParseMode).Msg("dry-run post:\n" + p.Caption)
	return nil
}
