package image

import (
	"fmt"
	"strings"
)

const inpaintPrompt = `You are a photo retouching tool. The first image is a clothing product photo and the second image is a black-and-white mask of the same size.
Remove whatever the WHITE mask region covers.
Look at the pixels bordering the white region to decide what belongs there: background seen through the garment (for example behind a collar where a mannequin neck was) or the fabric itself (for example a hole or a stain).
Pixels under the BLACK region are final and must not change at all.
Return exactly one cleaned image and no text.`

const mannequinPrompt = `You retouch "ghost mannequin" product photos. Find any leftover pieces of the mannequin in this image, usually at the neck, the shoulders or inside the garment, and remove them.
Fill the removed areas so they match the seamless white or light grey studio background, or the inner fabric of the garment.
Leave the clothing itself exactly as it is. Return exactly one cleaned image.`

const watermarkPrompt = `Remove every watermark, logo, caption and other digital overlay from this image.
Reconstruct the covered areas so they blend with their surroundings, and leave the main subject unchanged.
Return exactly one cleaned image.`

// InpaintPrompt is the instruction sent with an image and its mask.
func InpaintPrompt() string {
	return inpaintPrompt
}

// AutoCleanPrompt returns the mask-free instruction for mode.
func AutoCleanPrompt(mode CleanMode) string {
	if mode == CleanModeWatermark {
		return watermarkPrompt
	}
	return mannequinPrompt
}

// BuildGenerationPrompt turns a generation request into a model instruction.
// A user prompt is kept verbatim and followed by the mode's direction.
func BuildGenerationPrompt(req GenerateRequest) string {
	var lines []string
	if p := strings.TrimSpace(req.Prompt); p != "" {
		lines = append(lines, p)
	}

	switch req.Mode {
	case WorkflowModeModel:
		lines = append(lines, "Show a photorealistic model wearing the clothing item from the provided image in a minimal studio with soft directional light.")
	case WorkflowModeCreative:
		lines = append(lines, "Create an editorial advertising shot of the product with a styled backdrop that complements its colours.")
	default:
		lines = append(lines, "Render the garment as a ghost mannequin shot: worn by an invisible body with natural volume, on a seamless white background.")
	}

	if req.SourceImage != nil {
		lines = append(lines, "Use the provided photo as the only product reference. Preserve its shape, colour, texture and logos.")
	}
	if q := req.Quantity; q > 1 {
		lines = append(lines, fmt.Sprintf("Produce %d distinct variations.", q))
	}
	lines = append(lines, "Do not add any text or watermark.")
	return strings.Join(lines, "\n")
}
