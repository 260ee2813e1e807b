package image

import (
	"context"
	"strings"
)

// WorkflowMode enumerates supported modes for fresh generation.
type WorkflowMode string

const (
	WorkflowModeGhost    WorkflowMode = "ghost"
	WorkflowModeModel    WorkflowMode = "model"
	WorkflowModeCreative WorkflowMode = "creative"
)

// CleanMode selects what an automatic cleanup removes.
type CleanMode string

const (
	CleanModeMannequin CleanMode = "mannequin"
	CleanModeWatermark CleanMode = "watermark"
)

// SourceImage is an encoded image used as conditioning input.
type SourceImage struct {
	MIME   string
	Data   []byte
	Width  int
	Height int
}

// CleanRequest asks a Cleaner to rework one image. Mask is a PNG at the
// source resolution where white marks pixels to regenerate; it is ignored by
// AutoClean.
type CleanRequest struct {
	Source    SourceImage
	Mask      []byte
	Mode      CleanMode
	Locale    string
	RequestID string
}

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt      string
	Quantity    int
	AspectRatio string
	RequestID   string
	Locale      string
	Mode        WorkflowMode
	SourceImage *SourceImage
}

// Asset represents a generated or edited image.
type Asset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// Cleaner removes unwanted regions from product photos.
type Cleaner interface {
	Inpaint(ctx context.Context, req CleanRequest) ([]Asset, error)
	AutoClean(ctx context.Context, req CleanRequest) ([]Asset, error)
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Asset, error)
}

// NormalizeWorkflowMode sanitizes free-form user input into a supported mode.
func NormalizeWorkflowMode(mode string) WorkflowMode {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(WorkflowModeModel):
		return WorkflowModeModel
	case string(WorkflowModeCreative):
		return WorkflowModeCreative
	default:
		return WorkflowModeGhost
	}
}

// NormalizeCleanMode maps user input to a CleanMode, defaulting to mannequin removal.
func NormalizeCleanMode(mode string) CleanMode {
	if strings.EqualFold(strings.TrimSpace(mode), string(CleanModeWatermark)) {
		return CleanModeWatermark
	}
	return CleanModeMannequin
}
