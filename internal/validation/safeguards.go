package validation

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// InjectionCheckResult holds the result of a basic injection heuristic check.
type InjectionCheckResult struct {
	IsSafe           bool     // Whether the content passed the basic heuristic check
	DetectedKeywords []string // Any suspicious keywords found
	Reason           string   // Human-readable explanation
}

// BasicInjectionKeywords contains trigger phrases that suggest an instruction
// is trying to take over the prompt rather than adjust the recommendation.
// This is intentionally not comprehensive - it's a fallback heuristic only.
var BasicInjectionKeywords = []string{
	"system prompt",
	"you are now",
	"act as",
	"pretend",
	"roleplay",
	"new instructions",
	"ignore previous",
	"ignore all",
	"forget everything",
	"disregard above",
}

// CheckBasicHeuristics performs a basic keyword-based check for obvious injection attempts.
func CheckBasicHeuristics(text string) *InjectionCheckResult {
	lowerText := strings.ToLower(text)
	var detectedKeywords []string

	for _, keyword := range BasicInjectionKeywords {
		if strings.Contains(lowerText, keyword) {
			detectedKeywords = append(detectedKeywords, keyword)
		}
	}

	if len(detectedKeywords) > 0 {
		return &InjectionCheckResult{
			IsSafe:           false,
			DetectedKeywords: detectedKeywords,
			Reason:           "detected potential injection keywords: " + strings.Join(detectedKeywords, ", "),
		}
	}

	return &InjectionCheckResult{IsSafe: true}
}

// commonInjectionPatterns are regex patterns for obvious injection attempts.
var commonInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions?`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|everything)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+an?\b`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?an?\b`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
}

// StripInjectionAttempts removes common injection patterns from text.
func StripInjectionAttempts(text string) string {
	result := text
	for _, pattern := range commonInjectionPatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// ScreenInstructions strips injection patterns from caller-supplied text
// and logs a warning when the heuristics fire. It never rejects the text.
func ScreenInstructions(text, source string, logger *zap.Logger) string {
	if text == "" {
		return text
	}
	result := CheckBasicHeuristics(text)
	if !result.IsSafe && logger != nil {
		logger.Warn("potential prompt injection in caller instructions",
			zap.String("source", source),
			zap.Strings("keywords", result.DetectedKeywords))
	}
	return StripInjectionAttempts(text)
}
