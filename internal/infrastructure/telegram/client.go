package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/taskboard-api/internal/config"
)

// Client sends Bot API messages. It never calls getMe, so constructing it
// needs no network access.
type Client struct {
	bot  *tgbotapi.BotAPI
	http *http.Client
}

func NewClient(cfg config.Telegram) *Client {
	hc := &http.Client{Timeout: 10 * time.Second}
	bot := &tgbotapi.BotAPI{Token: cfg.BotToken, Client: hc, Buffer: 100}
	bot.SetAPIEndpoint(strings.TrimRight(cfg.APIBaseURL, "/") + "/bot%s/%s")
	return &Client{bot: bot, http: hc}
}

// SendMessage posts text to chatID. The request is bound to ctx.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	bot := *c.bot
	bot.Client = ctxClient{ctx: ctx, next: c.http}
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

type ctxClient struct {
	ctx  context.Context
	next tgbotapi.HTTPClient
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.next.Do(req.WithContext(c.ctx))
}
