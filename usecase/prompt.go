package usecase

import (
	"fmt"
	"strings"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
)

const (
	defaultLanguage            = "en"
	defaultScenario            = "greeting"
	defaultExplanationLanguage = "en"
)

// TurnSettings are the tutoring settings that shape one reply
type TurnSettings struct {
	Language            string
	Difficulty          entities.Difficulty
	Scenario            string
	Intensity           entities.TeachingIntensity
	ExplanationLanguage string
}

// ParseTurnSettings validates raw request fields and fills defaults.
// Unknown scenarios are accepted and described as general practice.
func ParseTurnSettings(language, difficulty, scenario, intensity string) (TurnSettings, error) {
	settings := TurnSettings{
		Language:            strings.ToLower(strings.TrimSpace(language)),
		Scenario:            strings.TrimSpace(scenario),
		ExplanationLanguage: defaultExplanationLanguage,
	}
	if settings.Language == "" {
		settings.Language = defaultLanguage
	}
	if !entities.IsKnownLanguage(settings.Language) {
		return TurnSettings{}, domain.InvalidRequest("unsupported language %q", language)
	}
	if settings.Scenario == "" {
		settings.Scenario = defaultScenario
	}

	var err error
	if settings.Difficulty, err = entities.ParseDifficulty(difficulty); err != nil {
		return TurnSettings{}, domain.InvalidRequest("%v", err)
	}
	if settings.Intensity, err = entities.ParseTeachingIntensity(intensity); err != nil {
		return TurnSettings{}, domain.InvalidRequest("%v", err)
	}
	return settings, nil
}

// SystemPrompt renders the tutor instructions for the settings.
func SystemPrompt(s TurnSettings) string {
	name := entities.LanguageName(s.Language)
	explanation := entities.LanguageName(s.ExplanationLanguage)
	g := s.Difficulty.Guidelines()

	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful language learning assistant. You are helping a user learn %s for travel purposes.\n\n", name)
	b.WriteString("Your role is to:\n")
	fmt.Fprintf(&b, "1. Have natural conversations in %s\n", name)
	fmt.Fprintf(&b, "2. Keep responses concise and appropriate for %s level learners\n", s.Difficulty)
	b.WriteString("3. Focus on practical phrases useful for travelers\n")
	b.WriteString("4. Correct mistakes gently when the user makes them\n")
	b.WriteString("5. Encourage and be supportive\n\n")
	fmt.Fprintf(&b, "Current scenario: %s\n\n", entities.ScenarioDescription(s.Scenario))

	b.WriteString("Level guidance:\n")
	fmt.Fprintf(&b, "- Use %s vocabulary and %s grammar.\n", g.VocabularyLevel, g.GrammarComplexity)
	if g.MaxSentenceLength > 0 {
		fmt.Fprintf(&b, "- Keep sentences under %d words.\n", g.MaxSentenceLength)
	}
	if g.ProvideTranslation && s.Intensity != entities.IntensityImmersive {
		fmt.Fprintf(&b, "- You may include brief %s explanations or translations in parentheses when it helps learning.\n", explanation)
	}

	switch s.Intensity {
	case entities.IntensityLight:
		fmt.Fprintf(&b, "- Only correct mistakes that block understanding; put any explanation in %s inside parentheses.\n", explanation)
	case entities.IntensityImmersive:
		fmt.Fprintf(&b, "- Stay in %s at all times, even when correcting; do not translate.\n", name)
	default:
		fmt.Fprintf(&b, "- Correct mistakes with a short %s explanation inside parentheses.\n", explanation)
	}
	if s.Intensity != entities.IntensityImmersive {
		fmt.Fprintf(&b, "- If the user speaks %s, acknowledge in %s and then provide the %s version.\n", explanation, explanation, name)
	}
	b.WriteString("- Keep responses to 1-3 sentences unless asked for more detail.")
	return b.String()
}

// BuildMessages assembles the system prompt, the last contextLen turns of
// history and the user's message.
func BuildMessages(s TurnSettings, history []entities.Turn, contextLen int, userText string) []repositories.ChatMessage {
	recent := entities.RecentTurns(history, contextLen)
	messages := make([]repositories.ChatMessage, 0, len(recent)+2)
	messages = append(messages, repositories.ChatMessage{Role: repositories.SystemRole, Content: SystemPrompt(s)})
	for _, t := range recent {
		role := repositories.UserRole
		if t.Role == entities.RoleAssistant {
			role = repositories.AssistantRole
		}
		messages = append(messages, repositories.ChatMessage{Role: role, Content: t.Content})
	}
	return append(messages, repositories.ChatMessage{Role: repositories.UserRole, Content: userText})
}
