package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request and response shapes of models/{model}:generateContent.

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type contentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type contentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// maxErrorBody bounds how much of a failed response ends up in an error.
const maxErrorBody = 4 << 10

func imagePart(img InlineImage) part {
	mime := img.MIME
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	return part{InlineData: &blob{MimeType: mime, Data: base64.StdEncoding.EncodeToString(img.Data)}}
}

// generateContent posts one user turn made of parts and asks for image output.
func (c *Client) generateContent(ctx context.Context, parts []part, candidates int) (*contentResponse, error) {
	payload, err := json.Marshal(contentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			CandidateCount:     candidates,
			ResponseModalities: []string{"IMAGE"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("genai: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("genai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: call %s: %w", c.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(resp)
	}
	var out contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("genai: decode response: %w", err)
	}
	for _, cand := range out.Candidates {
		if cand.FinishReason != "" && cand.FinishReason != "STOP" {
			c.logger.Warn().Str("model", c.model).Str("finish_reason", cand.FinishReason).Msg("genai: candidate stopped early")
		}
	}
	return &out, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return fmt.Errorf("genai: status %d: %s", resp.StatusCode, e.Error.Message)
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("genai: status %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("genai: status %d", resp.StatusCode)
}

// images decodes the inline image parts; limit <= 0 means all of them.
// Undecodable parts are logged and skipped.
func (c *Client) images(parts []part, limit int) []ImageAsset {
	var assets []ImageAsset
	for _, p := range parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("genai: skipping undecodable part")
			continue
		}
		asset := ImageAsset{Format: p.InlineData.MimeType, Data: data}
		if asset.Format == "" {
			asset.Format = "image/png"
		}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			asset.Width, asset.Height = cfg.Width, cfg.Height
		}
		assets = append(assets, asset)
		if limit > 0 && len(assets) >= limit {
			break
		}
	}
	return assets
}
