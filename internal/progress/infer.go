package progress

import "strings"

// InferFailedStep guesses which step produced a free-text failure message.
// Best effort: there is no error-code contract behind it.
func InferFailedStep(errText string) int {
	t := strings.ToLower(errText)
	switch {
	case strings.Contains(t, "analy"):
		return 0
	case strings.Contains(t, "transcript"):
		return 1
	case strings.Contains(t, "summary"), strings.Contains(t, "generat"):
		return 2
	default:
		return 2
	}
}
