package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fencedCodeRe   = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe   = regexp.MustCompile("`[^`]*`")
	markdownLinkRe = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	bareURLRe      = regexp.MustCompile(`https?://\S+`)

	markupReplacer = strings.NewReplacer("*", " ", "_", " ", "#", " ", "~", " ", "|", " ", "<", " ", ">", " ", "\\", " ")
)

// spokenText turns a reply into the text handed to the synthesizer.
// Markup, links and emoji read badly aloud; the displayed reply keeps them.
// Math symbols such as + and = stay.
// A reply that is nothing but symbols is spoken as-is.
func spokenText(reply string) string {
	s := fencedCodeRe.ReplaceAllString(reply, " ")
	s = inlineCodeRe.ReplaceAllString(s, " ")
	s = markdownLinkRe.ReplaceAllString(s, "$1")
	s = bareURLRe.ReplaceAllString(s, " ")
	s = markupReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case r == '\u200d' || r == '\ufe0f' || unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sk):
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if out == "" {
		return strings.TrimSpace(reply)
	}
	return out
}
