// Package telegram publishes product posts to a Telegram channel through the
// Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dealcaster/internal/config"
	"dealcaster/internal/model"

	"github.com/go-resty/resty/v2"
)

const requestTimeout = 30 * time.Second

// Captioner produces alternative post text, typically AI-written. A nil
// Captioner or a failing one falls back to the template caption.
type Captioner interface {
	Caption(ctx context.Context, p model.Product) (string, error)
}

// Client posts products to a channel.
type Client struct {
	token      string
	channelID  string
	publicBase string
	http       *resty.Client
	captioner  Captioner
}

// NewClient builds a channel publisher. publicBase, when non-empty, is the
// external base URL used for click-tracking links instead of raw affiliate
// URLs. captioner may be nil.
func NewClient(cfg config.TelegramConfig, publicBase string, captioner Captioner) *Client {
	return &Client{
		token:      cfg.BotToken,
		channelID:  cfg.ChannelID,
		publicBase: strings.TrimRight(publicBase, "/"),
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(requestTimeout),
		captioner: captioner,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Publish sends one product post to the channel, with a photo when the
// product has an image. Image failures degrade to a text-only post.
func (c *Client) Publish(ctx context.Context, p model.Product) error {
	caption, err := c.caption(ctx, p)
	if err != nil {
		return fmt.Errorf("telegram: caption: %w", err)
	}
	if p.ImageURL != "" {
		photo, err := fetchPhoto(ctx, c.http, p.ImageURL)
		if err != nil {
			slog.Warn("telegram: image fetch failed, posting text only.", "id", p.ID, "error", err)
		} else if err := c.sendPhoto(ctx, photo, caption); err != nil {
			return err
		} else {
			return nil
		}
	}
	return c.sendMessage(ctx, caption)
}

func (c *Client) caption(ctx context.Context, p model.Product) (string, error) {
	if c.captioner != nil {
		text, err := c.captioner.Caption(ctx, p)
		if err == nil && strings.TrimSpace(text) != "" {
			return text + "\n\n🔗 " + c.linkFor(p), nil
		}
		if err != nil {
			slog.Warn("telegram: ai caption failed, using template.", "id", p.ID, "error", err)
		}
	}
	return Caption(p, c.linkFor(p))
}

// linkFor returns the URL the post carries. With a public base configured
// clicks route through the redirect endpoint so they can be counted.
func (c *Client) linkFor(p model.Product) string {
	if c.publicBase != "" {
		return c.publicBase + "/r/" + p.ID
	}
	return p.AffiliateURL
}

func (c *Client) sendPhoto(ctx context.Context, photo []byte, caption string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":    c.channelID,
			"caption":    caption,
			"parse_mode": "Markdown",
		}).
		SetFileReader("photo", "product.jpg", bytes.NewReader(photo)).
		Post("/bot" + c.token + "/sendPhoto")
	if err != nil {
		return fmt.Errorf("telegram: sendPhoto: %w", err)
	}
	return checkResponse("sendPhoto", resp)
}

func (c *Client) sendMessage(ctx context.Context, text string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":    c.channelID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		Post("/bot" + c.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram: sendMessage: %w", err)
	}
	return checkResponse("sendMessage", resp)
}

func checkResponse(method string, resp *resty.Response) error {
	var r apiResponse
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return fmt.Errorf("telegram: %s: status %d: %w", method, resp.StatusCode(), err)
	}
	if !r.OK {
		return fmt.Errorf("telegram: %s: %s", method, r.Description)
	}
	return nil
}
