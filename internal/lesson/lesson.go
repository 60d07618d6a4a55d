// Package lesson produces lesson summaries and quizzes with a Gemini text
// model, falling back to fixed content when the model is unavailable.
package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the text model used when none is configured.
const DefaultModel = "gemini-3-flash-preview"

const (
	defaultLanguage = "English"
	defaultLevel    = "Intermediate"
	quizSize        = 3
)

var errInvalidQuiz = errors.New("lesson: invalid quiz response")

// ContentGenerator is the subset of the genai Models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// SummaryRequest describes the lesson to summarize.
type SummaryRequest struct {
	Title    string
	Context  string
	Language string
	Level    string
}

// Question is one multiple-choice quiz question.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Assistant writes lesson summaries and quizzes.
type Assistant struct {
	models ContentGenerator
	model  string
	logger *slog.Logger
}

// NewAssistant creates an Assistant. A nil models makes every call return fallback content.
func NewAssistant(models ContentGenerator, model string, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = DefaultModel
	}
	return &Assistant{models: models, model: model, logger: logger}
}

// NewGenaiAssistant creates an Assistant backed by the Gemini API.
// Without an API key the assistant only serves fallback content.
func NewGenaiAssistant(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Assistant, error) {
	if strings.TrimSpace(apiKey) == "" {
		if logger != nil {
			logger.Warn("text model API key not set, lesson assistant uses fallback content")
		}
		return NewAssistant(nil, model, logger), nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("lesson: create genai client: %w", err)
	}
	return NewAssistant(client.Models, model, logger), nil
}

// Available reports whether a text model is configured.
func (a *Assistant) Available() bool {
	return a.models != nil
}

// Summary returns a short instructor-voice summary of the lesson.
func (a *Assistant) Summary(ctx context.Context, req SummaryRequest) string {
	fallback := fmt.Sprintf("Welcome to %q. %s", req.Title, req.Context)
	if a.models == nil {
		return fallback
	}

	language := orDefault(req.Language, defaultLanguage)
	level := orDefault(req.Level, defaultLevel)
	prompt := fmt.Sprintf(
		"Generate a concise, engaging professional lesson summary for a course titled %q. "+
			"The content context is: %q. Target Language: %s. Target Learner Level: %s. "+
			"Write it in a friendly tone as if you were the instructor, Natalie Storm. Keep it under 100 words.",
		req.Title, req.Context, language, level,
	)

	resp, err := a.models.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	})
	if err != nil {
		a.logger.Error("lesson summary failed",
			slog.String("title", req.Title),
			slog.String("error", err.Error()),
		)
		return fallback
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		a.logger.Warn("lesson summary was empty", slog.String("title", req.Title))
		return fallback
	}
	return text
}

// Quiz returns multiple-choice questions about the lesson.
func (a *Assistant) Quiz(ctx context.Context, title string) []Question {
	if a.models == nil {
		return fallbackQuiz(title)
	}

	prompt := fmt.Sprintf("Create %d multiple choice quiz questions for the lesson: %q.", quizSize, title)
	resp, err := a.models.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   quizSchema,
	})
	if err == nil {
		var questions []Question
		questions, err = parseQuiz(responseText(resp))
		if err == nil {
			return questions
		}
	}

	a.logger.Error("lesson quiz failed",
		slog.String("title", title),
		slog.String("error", err.Error()),
	)
	return fallbackQuiz(title)
}

var quizSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"question": {Type: genai.TypeString},
			"options": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"correctAnswer": {
				Type:        genai.TypeInteger,
				Description: "index of the correct option",
			},
		},
		Required: []string{"question", "options", "correctAnswer"},
	},
}

func parseQuiz(text string) ([]Question, error) {
	var questions []Question
	if err := json.Unmarshal([]byte(text), &questions); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidQuiz, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", errInvalidQuiz)
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) < 2 {
			return nil, fmt.Errorf("%w: question %d is incomplete", errInvalidQuiz, i)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return nil, fmt.Errorf("%w: question %d answer out of range", errInvalidQuiz, i)
		}
	}
	return questions, nil
}

func fallbackQuiz(title string) []Question {
	return []Question{{
		Question:      fmt.Sprintf("What is the main topic of %q?", title),
		Options:       []string{"Option 1", "Option 2", "Option 3", "Option 4"},
		CorrectAnswer: 0,
	}}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
