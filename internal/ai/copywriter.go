// Package ai generates promotional post copy through the OpenAI Chat
// Completions API.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dealcaster/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Copywriter writes a short promotional caption for a product.
type Copywriter interface {
	Caption(ctx context.Context, p model.Product) (string, error)
}

// OpenAIClient implements Copywriter using OpenAI Chat Completions API.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	language string
}

type Config struct {
	APIKey   string
	Model    string
	BaseURL  string // optional
	Language string
}

func NewOpenAI(cfg Config) *OpenAIClient {
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	model := cfg.Model
	if model == "" {
		panic("OpenAI model must be specified")
	}
	return &OpenAIClient{client: c, model: model, language: langOrDefault(cfg.Language)}
}

func (o *OpenAIClient) Caption(ctx context.Context, p model.Product) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	title := strings.TrimSpace(p.Title)
	if len([]rune(title)) > 200 {
		title = string([]rune(title)[:200])
	}

	sys := fmt.Sprintf(`
		You write short promotional posts for a deals channel, in %s.
		Return 2-4 sentences plus the price line, plain text with tasteful emoji.
		Mention the discount and the price. Be punchy, never misleading.
		Do not invent product features. Do not include any links.
		`, o.language)
	user := fmt.Sprintf("Product: %s\nOriginal price: R$ %.2f\nSale price: R$ %.2f\nDiscount: %.0f%%\nRating: %.1f\nOrders: %d",
		title, p.OriginalPrice, p.SalePrice, p.Discount, p.Rating, p.Volume)
	out, err := o.create(ctx, sys, user)
	if err != nil {
		slog.Error("openai: caption error", "err", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (o *OpenAIClient) create(ctx context.Context, system, user string) (string, error) {
	// Default timeout guard, if caller didn't set one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func langOrDefault(lang string) string {
	l := strings.TrimSpace(lang)
	if l == "" {
		return "English"
	}
	return l
}
