// Package upstream provides concrete implementations of the opaque upstream
// client the relay core is written against.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tgfeed/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const downloadTimeout = 60 * time.Second

// BotClient adapts the Telegram Bot API to domain.Client. Bot credentials
// are token-scoped: there is no interactive login and no history access, so
// RequestLoginCode, SignIn, CheckPassword, Messages and Message report
// ErrNotSupported. Live channel posts and attachment downloads work.
type BotClient struct {
	token  string
	logger *slog.Logger
	httpc  *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewBotClient(token string, logger *slog.Logger) *BotClient {
	return &BotClient{
		token:  token,
		logger: logger,
		httpc:  &http.Client{Timeout: downloadTimeout},
	}
}

func (c *BotClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(c.token)
	if err != nil {
		return classify(err)
	}
	c.bot = bot
	c.logger.Info("bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)
	return nil
}

func (c *BotClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		c.bot.StopReceivingUpdates()
		c.bot = nil
	}
	return nil
}

func (c *BotClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bot != nil
}

func (c *BotClient) api() (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot == nil {
		return nil, domain.ErrNotConnected
	}
	return c.bot, nil
}

func (c *BotClient) Me(ctx context.Context) (*domain.Identity, error) {
	bot, err := c.api()
	if err != nil {
		return nil, err
	}
	u, err := bot.GetMe()
	if err != nil {
		return nil, classify(err)
	}
	return &domain.Identity{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, nil
}

func (c *BotClient) RequestLoginCode(ctx context.Context) error {
	return fmt.Errorf("bot credentials have no login challenge: %w", domain.ErrNotSupported)
}

func (c *BotClient) SignIn(ctx context.Context, code string) error {
	return fmt.Errorf("bot credentials have no login challenge: %w", domain.ErrNotSupported)
}

func (c *BotClient) CheckPassword(ctx context.Context, password string) error {
	return fmt.Errorf("bot credentials have no second factor: %w", domain.ErrNotSupported)
}

func (c *BotClient) Messages(ctx context.Context, channelID int64, limit, offsetID int) ([]domain.UpstreamMessage, error) {
	return nil, fmt.Errorf("bot API exposes no channel history: %w", domain.ErrNotSupported)
}

func (c *BotClient) Message(ctx context.Context, channelID int64, id int) (*domain.UpstreamMessage, error) {
	return nil, fmt.Errorf("bot API exposes no message lookup: %w", domain.ErrNotSupported)
}

func (c *BotClient) Download(ctx context.Context, msg *domain.UpstreamMessage) ([]byte, error) {
	if msg.File == nil || msg.File.ID == "" {
		return nil, domain.ErrMediaUnavailable
	}
	bot, err := c.api()
	if err != nil {
		return nil, err
	}
	url, err := bot.GetFileDirectURL(msg.File.ID)
	if err != nil {
		return nil, classify(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: file server returned %d", domain.ErrMediaUnavailable, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *BotClient) Updates(ctx context.Context) (<-chan domain.UpstreamMessage, error) {
	bot, err := c.api()
	if err != nil {
		return nil, err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	out := make(chan domain.UpstreamMessage, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				post := update.ChannelPost
				if post == nil {
					post = update.Message
				}
				if post == nil || post.Chat == nil {
					continue
				}
				out <- convert(post)
			}
		}
	}()
	return out, nil
}

// convert maps a Bot API message to the upstream event shape.
func convert(m *tgbotapi.Message) domain.UpstreamMessage {
	msg := domain.UpstreamMessage{
		ID:        m.MessageID,
		ChannelID: m.Chat.ID,
		Date:      time.Unix(int64(m.Date), 0),
		Text:      m.Text,
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}

	switch {
	case len(m.Photo) > 0:
		msg.Photo = true
		// Bot API lists photo sizes ascending; relay the largest.
		p := m.Photo[len(m.Photo)-1]
		msg.File = &domain.FileInfo{ID: p.FileID, Size: int64(p.FileSize)}
	case m.Animation != nil:
		msg.Animation = true
		msg.File = &domain.FileInfo{
			ID: m.Animation.FileID, Name: m.Animation.FileName,
			MimeType: m.Animation.MimeType, Size: int64(m.Animation.FileSize),
		}
	case m.Video != nil:
		msg.Video = true
		msg.File = &domain.FileInfo{
			ID: m.Video.FileID, Name: m.Video.FileName,
			MimeType: m.Video.MimeType, Size: int64(m.Video.FileSize),
		}
	case m.Voice != nil:
		msg.Voice = true
		msg.File = &domain.FileInfo{
			ID: m.Voice.FileID, MimeType: m.Voice.MimeType, Size: int64(m.Voice.FileSize),
		}
	case m.Audio != nil:
		msg.Audio = true
		msg.File = &domain.FileInfo{
			ID: m.Audio.FileID, Name: m.Audio.FileName,
			MimeType: m.Audio.MimeType, Size: int64(m.Audio.FileSize),
		}
	case m.Sticker != nil:
		msg.Sticker = true
		msg.File = &domain.FileInfo{ID: m.Sticker.FileID, Size: int64(m.Sticker.FileSize)}
	case m.Poll != nil:
		poll := &domain.PollInfo{Question: m.Poll.Question}
		for _, opt := range m.Poll.Options {
			poll.Options = append(poll.Options, opt.Text)
		}
		msg.Poll = poll
	case m.Document != nil:
		msg.Document = true
		msg.File = &domain.FileInfo{
			ID: m.Document.FileID, Name: m.Document.FileName,
			MimeType: m.Document.MimeType, Size: int64(m.Document.FileSize),
		}
	}
	return msg
}

// classify translates Bot API failures into the upstream error taxonomy.
func classify(err error) error {
	s := err.Error()
	switch {
	case strings.Contains(s, "401") || strings.Contains(s, "Unauthorized"):
		return fmt.Errorf("%w: %v", domain.ErrAuthKeyInvalid, err)
	case strings.Contains(s, "terminated") || strings.Contains(s, "deactivated"):
		return fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	case strings.Contains(s, "connection refused") || strings.Contains(s, "no such host") ||
		strings.Contains(s, "timeout"):
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	default:
		return err
	}
}
