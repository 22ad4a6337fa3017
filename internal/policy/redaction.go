package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactPII masks emails, card numbers and phone numbers in transcripts before they are logged.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	// Cards first so long digit runs are not reported as phone numbers.
	for _, r := range []struct {
		pattern *regexp.Regexp
		marker  string
	}{
		{emailPattern, "[REDACTED_EMAIL]"},
		{cardPattern, "[REDACTED_CARD]"},
		{phonePattern, "[REDACTED_PHONE]"},
	} {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// ForLog returns the redacted transcript, truncated to max runes when max > 0.
func ForLog(input string, max int) string {
	out, _ := RedactPII(input)
	if max <= 0 {
		return out
	}
	runes := []rune(out)
	if len(runes) <= max {
		return out
	}
	return string(runes[:max]) + "..."
}
