package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// FallbackAnswer is served when the model output cannot be salvaged.
const FallbackAnswer = "कृषि सलाह के लिए स्थानीय कृषि विशेषज्ञ से संपर्क करें। आपकी समस्या का समाधान मिलेगा।"

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
	prefixRe     = regexp.MustCompile(`(?i)^(Answer|Response|A):\s*`)
	newlineRe    = regexp.MustCompile(`\s*\n\s*`)
)

type modelAnswer struct {
	Answer   string `json:"answer"`
	Language string `json:"language"`
}

// buildAnswer turns raw model output into a structured Answer. Parsing is
// layered: strict JSON, fence-stripped JSON, embedded JSON object, cleaned
// plain text, and finally a fixed fallback.
func buildAnswer(raw string, req AskRequest) Answer {
	lang := fallbackLanguage(req)

	if parsed, ok := parseModelJSON(raw); ok {
		if parsed.Language != "" {
			lang = parsed.Language
		}
		return Answer{Answer: parsed.Answer, Language: lang}
	}

	if text := cleanRawText(raw); text != "" {
		return Answer{Answer: text, Language: lang}
	}

	return Answer{Answer: FallbackAnswer, Language: lang}
}

// parseModelJSON tries the JSON layers in order of strictness.
func parseModelJSON(raw string) (modelAnswer, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return modelAnswer{}, false
	}

	candidates := []string{trimmed}

	stripped := fenceCloseRe.ReplaceAllString(fenceOpenRe.ReplaceAllString(trimmed, ""), "")
	if stripped != trimmed {
		candidates = append(candidates, strings.TrimSpace(stripped))
	}

	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		candidates = append(candidates, trimmed[start:end+1])
	}

	for _, candidate := range candidates {
		var parsed modelAnswer
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && strings.TrimSpace(parsed.Answer) != "" {
			parsed.Answer = strings.TrimSpace(parsed.Answer)
			return parsed, true
		}
	}
	return modelAnswer{}, false
}

// cleanRawText salvages a usable answer from non-JSON model output.
func cleanRawText(raw string) string {
	text := strings.TrimSpace(raw)
	text = fenceCloseRe.ReplaceAllString(fenceOpenRe.ReplaceAllString(text, ""), "")
	text = prefixRe.ReplaceAllString(text, "")
	text = newlineRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if len(text) <= 5 {
		return ""
	}
	return text
}

// fallbackLanguage resolves the answer language when the model omits one.
func fallbackLanguage(req AskRequest) string {
	if req.TargetLang != "" {
		return req.TargetLang
	}
	if req.UserLocale != "" {
		return req.UserLocale
	}
	return DefaultLanguage
}
