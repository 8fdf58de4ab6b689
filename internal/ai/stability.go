package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"
)

// TransformKind names an image transformation endpoint.
type TransformKind string

const (
	TransformUpscale  TransformKind = "upscale"
	TransformOutpaint TransformKind = "outpaint"
	TransformReplace  TransformKind = "replace"
	TransformRecolor  TransformKind = "recolor"
	TransformRemoveBG TransformKind = "removebg"
	TransformSketch   TransformKind = "sketch"
	TransformStyle    TransformKind = "style"
)

var transformPaths = map[TransformKind]string{
	TransformUpscale:  "/v2beta/stable-image/upscale/conservative",
	TransformOutpaint: "/v2beta/stable-image/edit/outpaint",
	TransformReplace:  "/v2beta/stable-image/edit/search-and-replace",
	TransformRecolor:  "/v2beta/stable-image/edit/search-and-recolor",
	TransformRemoveBG: "/v2beta/stable-image/edit/remove-background",
	TransformSketch:   "/v2beta/stable-image/control/sketch",
	TransformStyle:    "/v2beta/stable-image/control/style",
}

// ImageClient is the outbound image generation surface.
type ImageClient interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
	Transform(ctx context.Context, kind TransformKind, image []byte, prompt string) ([]byte, error)
}

// StabilityOptions configures the Stability AI client.
type StabilityOptions struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// Stability calls the Stability AI v2beta image endpoints.
type Stability struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewStability constructs the client with defaults for zeroed options.
func NewStability(opts StabilityOptions) *Stability {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.stability.ai"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Stability{
		token:   opts.Token,
		baseURL: opts.BaseURL,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

// Generate produces an image from a text prompt. Prompts are expected to be
// in English; callers translate before invoking.
func (s *Stability) Generate(ctx context.Context, prompt string) ([]byte, error) {
	fields := map[string]string{
		"prompt":        prompt,
		"output_format": "png",
	}
	return s.post(ctx, "generate", "/v2beta/stable-image/generate/core", nil, fields)
}

// Transform applies a named transformation to an uploaded image. The prompt
// parameter is ignored by transformations that take no prompt.
func (s *Stability) Transform(ctx context.Context, kind TransformKind, image []byte, prompt string) ([]byte, error) {
	path, ok := transformPaths[kind]
	if !ok {
		return nil, fmt.Errorf("stability: unknown transform %q", kind)
	}

	fields := map[string]string{"output_format": "png"}
	switch kind {
	case TransformUpscale, TransformOutpaint, TransformSketch, TransformStyle:
		if prompt != "" {
			fields["prompt"] = prompt
		}
	case TransformReplace:
		fields["prompt"] = prompt
		fields["search_prompt"] = prompt
	case TransformRecolor:
		fields["prompt"] = prompt
		fields["select_prompt"] = prompt
	}
	if kind == TransformOutpaint {
		fields["left"] = "256"
		fields["right"] = "256"
	}

	return s.post(ctx, string(kind), path, image, fields)
}

func (s *Stability) post(ctx context.Context, op, path string, image []byte, fields map[string]string) ([]byte, error) {
	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if image != nil {
		part, err := mw.CreateFormFile("image", "image.png")
		if err != nil {
			return nil, fmt.Errorf("stability %s: build form: %w", op, err)
		}
		if _, err := part.Write(image); err != nil {
			return nil, fmt.Errorf("stability %s: write image: %w", op, err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("stability %s: build form: %w", op, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("stability %s: close form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("stability %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "image/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "stability", Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providerErrorFromResponse("stability", op, resp)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stability %s: read response: %w", op, err)
	}

	logger.AI.Debug("image call completed",
		slog.String("event", "ai.image"),
		slog.String("op_type", op),
		slog.Int("bytes", len(out)),
		slog.Duration("duration", logger.Took(start)),
	)
	return out, nil
}
