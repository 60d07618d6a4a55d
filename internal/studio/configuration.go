package studio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/zinara-studio/internal/narration"
)

// ErrInvalidConfiguration is returned when a configuration value is outside its allowed set.
var ErrInvalidConfiguration = errors.New("studio: invalid configuration")

// Field names one configuration setting.
type Field string

const (
	FieldResolution    Field = "resolution"
	FieldAspectRatio   Field = "aspect_ratio"
	FieldVisualStyle   Field = "visual_style"
	FieldGuidanceLevel Field = "guidance_level"
	FieldLanguage      Field = "language"
	FieldLearnerLevel  Field = "learner_level"
	FieldAudioModel    Field = "audio_model"
)

// Configuration is the set of generation and narration parameters for one session.
// It is a value: With returns an updated copy and never changes the receiver.
type Configuration struct {
	Resolution    string `json:"resolution" validate:"oneof=720p 1080p"`
	AspectRatio   string `json:"aspect_ratio" validate:"oneof=16:9 9:16"`
	VisualStyle   string `json:"visual_style" validate:"oneof=Cinematic Minimalist Hyper-realistic 'Studio 3D' Hand-drawn"`
	GuidanceLevel string `json:"guidance_level" validate:"oneof=Low Medium High"`
	Language      string `json:"language" validate:"required,max=64"`
	LearnerLevel  string `json:"learner_level" validate:"oneof=Beginner Intermediate Professional"`
	AudioModel    string `json:"audio_model" validate:"oneof=local remote"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfiguration returns the configuration a new session starts with.
func DefaultConfiguration() Configuration {
	return Configuration{
		Resolution:    "720p",
		AspectRatio:   "16:9",
		VisualStyle:   "Cinematic",
		GuidanceLevel: "Medium",
		Language:      "English",
		LearnerLevel:  "Intermediate",
		AudioModel:    string(narration.EngineLocal),
	}
}

// Validate checks every field against its allowed values.
func (c Configuration) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

// With returns a copy of c with field set to value.
func (c Configuration) With(field Field, value string) (Configuration, error) {
	next := c
	switch field {
	case FieldResolution:
		next.Resolution = value
	case FieldAspectRatio:
		next.AspectRatio = value
	case FieldVisualStyle:
		next.VisualStyle = value
	case FieldGuidanceLevel:
		next.GuidanceLevel = value
	case FieldLanguage:
		next.Language = value
	case FieldLearnerLevel:
		next.LearnerLevel = value
	case FieldAudioModel:
		next.AudioModel = value
	default:
		return c, fmt.Errorf("%w: unknown field %q", ErrInvalidConfiguration, field)
	}

	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}

// Apply sets several fields at once. Either every update applies or none does.
// Fields are applied in name order so errors are deterministic.
func (c Configuration) Apply(updates map[Field]string) (Configuration, error) {
	fields := make([]Field, 0, len(updates))
	for f := range updates {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	next := c
	for _, f := range fields {
		var err error
		if next, err = next.With(f, updates[f]); err != nil {
			return c, err
		}
	}
	return next, nil
}

// Engine returns the narration engine the configuration selects.
func (c Configuration) Engine() narration.EngineKind {
	return narration.EngineKind(c.AudioModel)
}
