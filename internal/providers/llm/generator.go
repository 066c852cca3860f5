// Package llm generates website content through an OpenAI-compatible chat
// endpoint and hands it to the site writer.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"sitespeak/internal/domain"
	"sitespeak/internal/sitewriter"
)

const systemPrompt = `You are a website generator.
Given a user request, respond with ONE valid JSON object and nothing else:
{
  "htmlContent": "<complete standalone HTML document>",
  "cssContent": "<stylesheet, optional>",
  "jsContent": "<script, optional>"
}
Do not wrap the JSON in markdown. Do not add explanations.`

// Config controls the chat endpoint used for generation.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Generator implements ports.SiteGenerator on top of a chat completion.
type Generator struct {
	client openai.Client
	model  string
	writer *sitewriter.Writer
	log    *slog.Logger
}

func NewGenerator(cfg Config, writer *sitewriter.Writer, log *slog.Logger) *Generator {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Generator{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		writer: writer,
		log:    log,
	}
}

// Generate asks the model for site content and writes it to disk, returning
// the artifact URL.
func (g *Generator) Generate(ctx context.Context, request string) (domain.GeneratedArtifact, error) {
	g.log.Info("generating website", "model", g.model)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(request),
		},
		Model: openai.ChatModel(g.model),
	})
	if err != nil {
		return domain.GeneratedArtifact{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.GeneratedArtifact{}, errors.New("no choices in response")
	}

	content, err := parseSiteContent(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.GeneratedArtifact{}, err
	}

	artifact, err := g.writer.Write(content)
	if err != nil {
		return domain.GeneratedArtifact{}, err
	}

	g.log.Info("website generated", "url", artifact.URL)
	return artifact, nil
}

// parseSiteContent decodes the model reply. Markdown code fences are
// tolerated; a raw HTML document is accepted as a fallback when the model
// ignores the JSON instruction.
func parseSiteContent(raw string) (domain.SiteContent, error) {
	trimmed := stripFences(raw)
	if trimmed == "" {
		return domain.SiteContent{}, errors.New("empty model response")
	}

	var content domain.SiteContent
	if err := json.Unmarshal([]byte(trimmed), &content); err != nil {
		if looksLikeHTML(trimmed) {
			return domain.SiteContent{HTML: trimmed}, nil
		}
		return domain.SiteContent{}, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if strings.TrimSpace(content.HTML) == "" {
		return domain.SiteContent{}, errors.New("model response has no htmlContent")
	}
	return content, nil
}

func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func looksLikeHTML(text string) bool {
	lowered := strings.ToLower(text)
	return strings.HasPrefix(lowered, "<!doctype") || strings.Contains(lowered, "<html")
}
