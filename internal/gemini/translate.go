package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

var languageNames = map[string]string{
	"hi": "Hindi",
	"mr": "Marathi",
	"en": "English",
}

// LanguageName returns the English name of an ISO 639-1 code, or "" when
// the language is not supported.
func LanguageName(code string) string {
	return languageNames[code]
}

// Translate renders text in the language identified by code.
func (c *Client) Translate(ctx context.Context, text, code string) (string, error) {
	lang := LanguageName(code)
	if lang == "" {
		return "", fmt.Errorf("unsupported language %q", code)
	}
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	prompt := fmt.Sprintf(
		"Translate the following text into %s. Keep scheme names, numbers and URLs unchanged. "+
			"Reply with the translation only.\n\n%s", lang, text)

	return c.generate(ctx, "gemini-translate", []*genai.Part{genai.NewPartFromText(prompt)},
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)})
}
