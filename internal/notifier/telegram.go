package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "pagewatch/pkg/logx"
)

// Telegram posts alerts to one chat through the Bot API.
type Telegram struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	limiter *rate.Limiter

	mu   sync.Mutex
	chat *tele.Chat
}

// NewTelegram logs the bot in (getMe). A failed login is returned as is so the
// caller can abort startup.
func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrEmptyToken
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		URL:    strings.TrimRight(cfg.APIURL, "/"),
		Token:  cfg.Token,
		Client: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}

	t := &Telegram{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
	t.log.Info("telegram login ok",
		logx.String("bot", b.Me.Username),
		logx.Int64("bot_id", b.Me.ID),
		logx.String("destination", cfg.Destination),
	)
	return t, nil
}

// Identity returns the logged-in bot username.
func (t *Telegram) Identity() string {
	if t == nil || t.bot == nil || t.bot.Me == nil {
		return ""
	}
	return t.bot.Me.Username
}

// Notify sends text to the configured destination, split into chunks when it
// exceeds the Telegram message limit. It does not retry.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	chat, err := t.destination()
	if err != nil {
		return err
	}

	chunks := splitText(text, textLimit)
	for i, chunk := range chunks {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("notify: wait for send slot: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		opt := &tele.SendOptions{DisableWebPagePreview: true}
		if _, err := t.bot.Send(chat, chunk, opt); err != nil {
			return fmt.Errorf("notify: send chunk %d/%d to %s: %w", i+1, len(chunks), t.cfg.Destination, err)
		}
	}
	t.log.Debug("alert delivered", logx.Int64("chat_id", chat.ID), logx.Int("chunks", len(chunks)))
	return nil
}

func (t *Telegram) destination() (*tele.Chat, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chat != nil {
		return t.chat, nil
	}

	chat, err := t.resolve()
	if err != nil {
		return nil, err
	}
	if err := t.checkTextCapable(chat); err != nil {
		return nil, err
	}
	t.chat = chat
	t.log.Info("destination resolved",
		logx.Int64("chat_id", chat.ID),
		logx.String("type", string(chat.Type)),
		logx.String("title", chat.Title),
	)
	return chat, nil
}

func (t *Telegram) resolve() (*tele.Chat, error) {
	dest := strings.TrimSpace(t.cfg.Destination)
	if dest == "" {
		return nil, fmt.Errorf("%w: no destination configured", ErrDestinationUnresolvable)
	}

	var (
		chat *tele.Chat
		err  error
	)
	if strings.HasPrefix(dest, "@") {
		chat, err = t.bot.ChatByUsername(dest)
	} else {
		id, perr := strconv.ParseInt(dest, 10, 64)
		if perr != nil {
			return nil, fmt.Errorf("%w: %q is neither a chat id nor an @username", ErrDestinationUnresolvable, dest)
		}
		chat, err = t.bot.ChatByID(id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDestinationUnresolvable, dest, err)
	}
	if chat == nil {
		return nil, fmt.Errorf("%w: %s: empty chat", ErrDestinationUnresolvable, dest)
	}
	return chat, nil
}

func (t *Telegram) checkTextCapable(chat *tele.Chat) error {
	switch chat.Type {
	case tele.ChatPrivate:
		return nil
	case tele.ChatGroup, tele.ChatSuperGroup, tele.ChatChannel, tele.ChatChannelPrivate:
	default:
		return fmt.Errorf("%w: chat %d has unsupported type %q", ErrNotTextCapable, chat.ID, chat.Type)
	}

	m, err := t.bot.ChatMemberOf(chat, t.bot.Me)
	if err != nil {
		return fmt.Errorf("check membership in chat %d: %w", chat.ID, err)
	}
	return canPost(chat, m)
}

func canPost(chat *tele.Chat, m *tele.ChatMember) error {
	if m == nil {
		return fmt.Errorf("%w: bot is not a member of chat %d", ErrNotTextCapable, chat.ID)
	}
	switch m.Role {
	case tele.Creator:
		return nil
	case tele.Left, tele.Kicked:
		return fmt.Errorf("%w: bot status in chat %d is %q", ErrNotTextCapable, chat.ID, m.Role)
	}

	if chat.Type == tele.ChatChannel || chat.Type == tele.ChatChannelPrivate {
		if m.Role == tele.Administrator && m.CanPostMessages {
			return nil
		}
		return fmt.Errorf("%w: bot cannot post in channel %d (status %q)", ErrNotTextCapable, chat.ID, m.Role)
	}

	if m.Role == tele.Restricted && !m.CanSendMessages {
		return fmt.Errorf("%w: bot is restricted in chat %d", ErrNotTextCapable, chat.ID)
	}
	return nil
}
