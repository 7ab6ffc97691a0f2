package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"clinicd/internal/manager"
)

const (
	autoSystemPrompt = "You are an expert clinical psychologist providing evidence-based treatment " +
		"recommendations. Your recommendations should be specific, actionable, and " +
		"tailored to the diagnosed condition."
	autoUserPrompt = "Diagnosed Pathology: %s\n" +
		"Clinical Summary: %s\n\n" +
		"Generate a comprehensive, evidence-based treatment recommendation including:\n" +
		"1. Recommended psychotherapy approaches\n" +
		"2. Medication considerations (if applicable)\n" +
		"3. Lifestyle interventions\n" +
		"4. Follow-up and monitoring plan"

	manualSystemPrompt = "You are an expert clinical psychologist. " +
		"You write clear, structured treatment recommendations, " +
		"always emphasizing safety and referral to a professional."
	manualUserPrompt = "Detected/Selected pathology: %s\n" +
		"Diagnosis summary: %s\n\n" +
		"Generate a structured treatment recommendation with:\n" +
		"1. Psychoeducation\n" +
		"2. Recommended therapeutic approaches\n" +
		"3. Self-care guidelines\n" +
		"4. Warning signs that require urgent professional help."
)

// BuildMessages renders the system and user turns for mode.
func BuildMessages(mode Mode, label, summary string) []manager.Message {
	sys, user := autoSystemPrompt, autoUserPrompt
	if mode == ModeManual {
		sys, user = manualSystemPrompt, manualUserPrompt
	}
	return []manager.Message{
		{Role: manager.RoleSystem, Content: sys},
		{Role: manager.RoleUser, Content: fmt.Sprintf(user, label, summary)},
	}
}

var (
	recommendationMarker = regexp.MustCompile(`(?i)^recommendation:\s*`)
	roleHeader           = regexp.MustCompile(`(?i)^(system|user|assistant)\s*:?\s*\n`)
)

// CleanOutput strips echoed prompt turns and a leading "Recommendation:"
// marker from raw generator output.
func CleanOutput(raw string, msgs []manager.Message) string {
	out := strings.TrimSpace(raw)
	for changed := true; changed; {
		changed = false
		if loc := roleHeader.FindStringIndex(out); loc != nil {
			out = strings.TrimSpace(out[loc[1]:])
			changed = true
		}
		for _, m := range msgs {
			c := strings.TrimSpace(m.Content)
			if c != "" && strings.HasPrefix(out, c) {
				out = strings.TrimSpace(strings.TrimPrefix(out, c))
				changed = true
			}
		}
	}
	if loc := recommendationMarker.FindStringIndex(out); loc != nil {
		out = strings.TrimSpace(out[loc[1]:])
	}
	return out
}
