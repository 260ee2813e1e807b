// Package genai talks to the Gemini image model over its REST API. Without an
// API key the client renders deterministic local results instead, which keeps
// the cleanup pipeline usable in development and CI.
package genai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/infra"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-image"
	maxQuantity    = 4
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// InlineImage is an encoded image sent alongside a prompt.
type InlineImage struct {
	MIME string
	Data []byte
}

// EditRequest asks the model to rework the first image. Further images (for
// example a mask) are passed in order after it.
type EditRequest struct {
	Prompt    string
	Images    []InlineImage
	RequestID string
}

// ImageRequest asks for Quantity new images, optionally derived from
// Reference.
type ImageRequest struct {
	Prompt      string
	Quantity    int
	AspectRatio string
	Locale      string
	RequestID   string
	Reference   *InlineImage
}

// ImageAsset is one decoded image returned by the model.
type ImageAsset struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// NewClient builds a client. A nil HTTPClient gets a two minute timeout, the
// typical upper bound of an image edit.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	c := &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      strings.TrimSpace(opts.Model),
		httpClient: httpClient,
		logger:     logger,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	return c, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client renders local results because no API
// key is configured.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// EditImage sends the images and instruction to the model and returns every
// image part of the first candidate. Remote failures are returned to the
// caller; an empty slice means the model answered without an image.
func (c *Client) EditImage(ctx context.Context, req EditRequest) ([]ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Images) == 0 {
		return nil, errors.New("genai: edit requires a source image")
	}
	if c.Synthetic() {
		return c.syntheticEdit(req)
	}

	parts := make([]part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, imagePart(img))
	}
	parts = append(parts, part{Text: strings.TrimSpace(req.Prompt)})

	resp, err := c.generateContent(ctx, parts, 0)
	if err != nil {
		return nil, err
	}
	var assets []ImageAsset
	if len(resp.Candidates) > 0 {
		assets = c.images(resp.Candidates[0].Content.Parts, 0)
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Int("images", len(assets)).
		Msg("genai: edited image")
	return assets, nil
}

// GenerateImages asks the model for up to Quantity (at most four) images.
func (c *Client) GenerateImages(ctx context.Context, req ImageRequest) ([]ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Synthetic() {
		return c.syntheticImages(req)
	}

	quantity := clampQuantity(req.Quantity)
	var parts []part
	if req.Reference != nil && len(req.Reference.Data) > 0 {
		parts = append(parts, imagePart(*req.Reference))
	}
	parts = append(parts, part{Text: generationPrompt(req)})

	resp, err := c.generateContent(ctx, parts, quantity)
	if err != nil {
		return nil, err
	}
	var assets []ImageAsset
	for _, cand := range resp.Candidates {
		if len(assets) >= quantity {
			break
		}
		assets = append(assets, c.images(cand.Content.Parts, quantity-len(assets))...)
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Int("quantity", len(assets)).
		Msg("genai: generated images")
	return assets, nil
}

func generationPrompt(req ImageRequest) string {
	lines := make([]string, 0, 3)
	if p := strings.TrimSpace(req.Prompt); p != "" {
		lines = append(lines, p)
	}
	if a := strings.TrimSpace(req.AspectRatio); a != "" {
		lines = append(lines, "Aspect ratio: "+a)
	}
	if l := strings.TrimSpace(req.Locale); l != "" {
		lines = append(lines, "Locale: "+l)
	}
	if len(lines) == 0 {
		return "Create a product photograph"
	}
	return strings.Join(lines, "\n")
}

func clampQuantity(quantity int) int {
	return min(max(quantity, 1), maxQuantity)
}
