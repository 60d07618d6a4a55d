package job

import (
	"fmt"
	"strings"
)

// PromptInput holds everything the generation prompt is composed from.
type PromptInput struct {
	Content       string
	DocumentName  string
	VisualStyle   string
	GuidanceLevel string
	Language      string
	LearnerLevel  string
}

// BuildPrompt composes the text prompt sent to the video model.
func BuildPrompt(in PromptInput) string {
	parts := []string{
		fmt.Sprintf("Educational video based on: %s.", strings.TrimSpace(in.Content)),
	}

	if name := strings.TrimSpace(in.DocumentName); name != "" {
		parts = append(parts, fmt.Sprintf("Context from %s.", name))
	}

	parts = append(parts,
		fmt.Sprintf("Style: %s. Guidance: %s. Language: %s. Learner Level: %s.",
			in.VisualStyle, in.GuidanceLevel, in.Language, in.LearnerLevel),
		"High quality, cinematic educational visualization, professional masterclass style.",
		fmt.Sprintf("The visual metaphors should be adapted for a %s level learner.", in.LearnerLevel),
		fmt.Sprintf("Important: Any on-screen text or narration hints should be in %s.", in.Language),
	)

	return strings.Join(parts, " ")
}
