package session

import (
	"fmt"
	"unicode/utf8"
)

// ValidateText checks that a chat message meets content requirements before
// it is handed to the moderation pipeline.
func ValidateText(text string, maxBytes, maxChars int) error {
	if len(text) == 0 {
		return fmt.Errorf("message text is empty")
	}
	if len(text) > maxBytes {
		return fmt.Errorf("message exceeds %d byte limit", maxBytes)
	}
	if utf8.RuneCountInString(text) > maxChars {
		return fmt.Errorf("message exceeds %d character limit", maxChars)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("message contains invalid UTF-8")
	}
	return nil
}
