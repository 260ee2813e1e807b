package domain

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// AssetKind enumerates artifact types.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
	AssetKindAudio AssetKind = "audio"
)

// InputAsset is a decoded artifact reference.
type InputAsset struct {
	Kind AssetKind
	MIME string
	Data []byte
}

// ArtifactURL encodes data as a self-contained data URL. Generated artifacts
// are referenced this way so no blob storage is needed.
func ArtifactURL(mime string, data []byte) string {
	if strings.TrimSpace(mime) == "" {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeArtifact parses a base64 data URL produced by ArtifactURL.
func DecodeArtifact(ref string) (InputAsset, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), "data:")
	if !ok {
		return InputAsset{}, fmt.Errorf("artifact: not a data url: %w", ErrInvalidArtifact)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return InputAsset{}, fmt.Errorf("artifact: missing payload: %w", ErrInvalidArtifact)
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return InputAsset{}, fmt.Errorf("artifact: only base64 data urls are supported: %w", ErrInvalidArtifact)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return InputAsset{}, fmt.Errorf("artifact: decode payload: %w", ErrInvalidArtifact)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return InputAsset{Kind: kindOf(mime), MIME: mime, Data: data}, nil
}

// ArtifactExtension returns a file extension for the artifact's MIME type.
func ArtifactExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	case "audio/wav", "audio/x-wav":
		return "wav"
	default:
		return "png"
	}
}

func kindOf(mime string) AssetKind {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return AssetKindVideo
	case strings.HasPrefix(mime, "audio/"):
		return AssetKindAudio
	default:
		return AssetKindImage
	}
}
