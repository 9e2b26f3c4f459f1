package gemini

import "strings"

// MIMEGemtext describes a MIME type for gemini text.
// As a subtype of "text" it inherits the "charset" parameter, which defaults to UTF-8,
// and may carry an optional "lang" parameter: "text/gemini; lang=en".
const MIMEGemtext = "text/gemini"

// isGemtext reports whether the success meta announces a gemtext body.
// Parameters such as charset and lang are ignored.
func isGemtext(meta string) bool {
	return strings.HasPrefix(meta, MIMEGemtext)
}
