package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"
)

// Chat roles understood by the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn sent to the chat completion API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult is the assistant reply plus token accounting for pricing.
type ChatResult struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// ChatClient is the outbound chat/transcription/translation surface the
// orchestrator depends on.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, model string) (ChatResult, error)
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// OpenAIOptions configures the OpenAI-compatible client.
type OpenAIOptions struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// OpenAI talks to an OpenAI-compatible HTTP API.
type OpenAI struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewOpenAI constructs the client with sane defaults for zeroed options.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &OpenAI{
		token:   opts.Token,
		baseURL: opts.BaseURL,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Chat sends the full ordered message list and returns the reply with usage.
func (o *OpenAI) Chat(ctx context.Context, messages []Message, model string) (ChatResult, error) {
	start := time.Now()

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return ChatResult{}, fmt.Errorf("openai chat: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, fmt.Errorf("openai chat: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return ChatResult{}, &ProviderError{Provider: "openai", Op: "chat", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ChatResult{}, providerErrorFromResponse("openai", "chat", resp)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ChatResult{}, fmt.Errorf("openai chat: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return ChatResult{}, fmt.Errorf("openai chat: empty choices")
	}

	logger.AI.Debug("chat completed",
		slog.String("event", "ai.chat"),
		slog.String("model", model),
		slog.Int64("prompt_tokens", decoded.Usage.PromptTokens),
		slog.Int64("completion_tokens", decoded.Usage.CompletionTokens),
		slog.Duration("duration", logger.Took(start)),
	)

	return ChatResult{
		Content:          decoded.Choices[0].Message.Content,
		PromptTokens:     decoded.Usage.PromptTokens,
		CompletionTokens: decoded.Usage.CompletionTokens,
		TotalTokens:      decoded.Usage.TotalTokens,
	}, nil
}

// Transcribe uploads an audio artifact and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("openai transcribe: build form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("openai transcribe: copy audio: %w", err)
	}
	if err := mw.WriteField("model", "whisper-1"); err != nil {
		return "", fmt.Errorf("openai transcribe: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("openai transcribe: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("openai transcribe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: "openai", Op: "transcribe", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", providerErrorFromResponse("openai", "transcribe", resp)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("openai transcribe: decode response: %w", err)
	}
	return decoded.Text, nil
}

// Translate rewrites text into the target language via a single chat call.
// Image prompts are translated to English before generation.
func (o *OpenAI) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	messages := []Message{
		{
			Role:    RoleSystem,
			Content: fmt.Sprintf("Translate the user message into %s. Reply with the translation only.", targetLanguage),
		},
		{Role: RoleUser, Content: text},
	}
	res, err := o.Chat(ctx, messages, "gpt-4o-mini")
	if err != nil {
		return "", err
	}
	return res.Content, nil
}
