// Package translate holds the translation collaborators and the per-language
// fan-out over them.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// Translator translates text between two languages.
type Translator interface {
	Name() string
	Configured() error
	Translate(ctx context.Context, text, source, target string) (string, error)
}

func systemInstruction(source, target string) string {
	return fmt.Sprintf("You are a translator. Translate the user's message from %s into %s. "+
		"Reply with only the translation, no other text.", source, target)
}

func validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return model.Invalid("cannot translate empty text")
	}
	return nil
}
