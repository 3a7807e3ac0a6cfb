package history

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxMessageBytes = 4096 // 4KB max frame size
	MaxTextChars    = 2000 // max character count
)

// ValidateBody checks that a chat message body meets content requirements.
// Empty (or whitespace-only) bodies are rejected; senders discard them
// locally and the server refuses to persist or relay them.
func ValidateBody(body string) error {
	if len(strings.TrimSpace(body)) == 0 {
		return fmt.Errorf("message body is empty")
	}
	if len(body) > MaxMessageBytes {
		return fmt.Errorf("message exceeds %d byte limit", MaxMessageBytes)
	}
	if utf8.RuneCountInString(body) > MaxTextChars {
		return fmt.Errorf("message exceeds %d character limit", MaxTextChars)
	}
	if !utf8.ValidString(body) {
		return fmt.Errorf("message contains invalid UTF-8")
	}
	return nil
}
