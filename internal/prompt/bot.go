package prompt

import (
	"fmt"
	"strings"

	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/config"
)

// QualifierTemplate is the template every bot renders.
const QualifierTemplate = "qualifier"

// Fallback texts for fields a bot leaves empty.
const (
	DefaultGreeting             = "Hello!"
	DefaultSuccessMessage       = "Thank you!"
	DefaultFailureMessage       = "Thank you for calling."
	DefaultClarificationMessage = "Please answer with yes or no."
)

// ConfigSource looks up bot configurations. *config.Store implements it.
type ConfigSource interface {
	BotConfig(botType string) (*config.BotConfig, error)
}

// BotPrompt renders the qualifier instructions for botType.
func BotPrompt(src ConfigSource, r *Renderer, botType string) (string, error) {
	cfg, err := src.BotConfig(botType)
	if err != nil {
		return "", err
	}

	out, err := r.Render(QualifierTemplate, Variables(cfg))
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", botType, err)
	}
	return out, nil
}

// Variables builds the placeholder values for a bot.
func Variables(cfg *config.BotConfig) map[string]string {
	return map[string]string{
		"greeting":              strings.TrimSpace(or(cfg.Greeting, DefaultGreeting)),
		"success_message":       strings.TrimSpace(or(cfg.SuccessMessage, DefaultSuccessMessage)),
		"failure_message":       strings.TrimSpace(or(cfg.FailureMessage, DefaultFailureMessage)),
		"clarification_message": strings.TrimSpace(or(cfg.ClarificationMessage, DefaultClarificationMessage)),
		"questions":             QuestionsBlock(cfg.Questions),
		"company_name":          cfg.CompanyName,
	}
}

// QuestionsBlock formats questions as "<n>. <text>" lines in list order.
func QuestionsBlock(questions []config.Question) string {
	lines := make([]string, len(questions))
	for i, q := range questions {
		lines[i] = fmt.Sprintf("%d. %s", i+1, q.Text)
	}
	return strings.Join(lines, "\n")
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
