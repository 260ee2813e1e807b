package image

import (
	"context"
	"fmt"

	"studio/internal/providers/genai"
)

// GeminiCleaner runs cleanups through the Gemini image model.
type GeminiCleaner struct {
	client *genai.Client
}

func NewGeminiCleaner(client *genai.Client) *GeminiCleaner {
	return &GeminiCleaner{client: client}
}

func (c *GeminiCleaner) Inpaint(ctx context.Context, req CleanRequest) ([]Asset, error) {
	if len(req.Mask) == 0 {
		return nil, fmt.Errorf("image: inpaint requires a mask")
	}
	assets, err := c.client.EditImage(ctx, genai.EditRequest{
		Prompt: InpaintPrompt(),
		Images: []genai.InlineImage{
			{MIME: req.Source.MIME, Data: req.Source.Data},
			{MIME: "image/png", Data: req.Mask},
		},
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return toAssets(assets), nil
}

func (c *GeminiCleaner) AutoClean(ctx context.Context, req CleanRequest) ([]Asset, error) {
	assets, err := c.client.EditImage(ctx, genai.EditRequest{
		Prompt:    AutoCleanPrompt(req.Mode),
		Images:    []genai.InlineImage{{MIME: req.Source.MIME, Data: req.Source.Data}},
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return toAssets(assets), nil
}

type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	imgReq := genai.ImageRequest{
		Prompt:      BuildGenerationPrompt(req),
		Quantity:    req.Quantity,
		AspectRatio: req.AspectRatio,
		Locale:      req.Locale,
		RequestID:   req.RequestID,
	}
	if req.SourceImage != nil {
		imgReq.Reference = &genai.InlineImage{MIME: req.SourceImage.MIME, Data: req.SourceImage.Data}
	}
	assets, err := g.client.GenerateImages(ctx, imgReq)
	if err != nil {
		return nil, err
	}
	return toAssets(assets), nil
}

func toAssets(in []genai.ImageAsset) []Asset {
	out := make([]Asset, len(in))
	for i, asset := range in {
		out[i] = Asset{
			Format: asset.Format,
			Width:  asset.Width,
			Height: asset.Height,
			Data:   asset.Data,
		}
	}
	return out
}

var (
	_ Generator = (*GeminiGenerator)(nil)
	_ Cleaner   = (*GeminiCleaner)(nil)
)
