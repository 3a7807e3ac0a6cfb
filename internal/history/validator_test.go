package history

import (
	"strings"
	"testing"
)

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ok", "merhaba", false},
		{"ok turkish", "nasılsın?", false},
		{"empty", "", true},
		{"whitespace only", "   \t\n", true},
		{"too many bytes", strings.Repeat("x", MaxMessageBytes+1), true},
		{"too many chars", strings.Repeat("ğ", MaxTextChars+1), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
		{"at byte limit", strings.Repeat("x", MaxTextChars), false},
	}

	for _, tt := range tests {
		err := ValidateBody(tt.body)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: ValidateBody() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
