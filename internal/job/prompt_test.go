package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	in := PromptInput{
		Content:       "  Intro to grids ",
		VisualStyle:   "Cinematic",
		GuidanceLevel: "Medium",
		Language:      "Spanish",
		LearnerLevel:  "Beginner",
	}

	prompt := BuildPrompt(in)

	assert.Equal(t,
		"Educational video based on: Intro to grids. "+
			"Style: Cinematic. Guidance: Medium. Language: Spanish. Learner Level: Beginner. "+
			"High quality, cinematic educational visualization, professional masterclass style. "+
			"The visual metaphors should be adapted for a Beginner level learner. "+
			"Important: Any on-screen text or narration hints should be in Spanish.",
		prompt)
}

func TestBuildPrompt_WithDocument(t *testing.T) {
	prompt := BuildPrompt(PromptInput{Content: "Grids", DocumentName: "layout.pdf", Language: "English"})

	assert.Contains(t, prompt, "Educational video based on: Grids. Context from layout.pdf. Style:")
}

func TestBuildPrompt_IsPure(t *testing.T) {
	in := PromptInput{Content: "Grids", Language: "French", LearnerLevel: "Professional"}
	assert.Equal(t, BuildPrompt(in), BuildPrompt(in))
}
