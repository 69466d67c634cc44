package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLogKeepsLastMessages(t *testing.T) {
	ml := NewMessageLog()

	for i := 1; i <= MaxBufferMessages+2; i++ {
		ml.Add("s1", LoggedMessage{From: "a", Text: fmt.Sprintf("msg %d", i), Ts: int64(i)})
	}

	recent := ml.Recent("s1")
	require.Len(t, recent, MaxBufferMessages)
	assert.Equal(t, "msg 3", recent[0].Text)
	assert.Equal(t, "msg 7", recent[len(recent)-1].Text)
}

func TestMessageLogIsolatesSessions(t *testing.T) {
	ml := NewMessageLog()
	ml.Add("s1", LoggedMessage{Text: "one"})
	ml.Add("s2", LoggedMessage{Text: "two"})

	require.Len(t, ml.Recent("s1"), 1)
	assert.Equal(t, "one", ml.Recent("s1")[0].Text)
	assert.Equal(t, "two", ml.Recent("s2")[0].Text)
	assert.Empty(t, ml.Recent("unknown"))
}

func TestMessageLogDrop(t *testing.T) {
	ml := NewMessageLog()
	ml.Add("s1", LoggedMessage{Text: "one"})
	ml.Drop("s1")
	assert.Empty(t, ml.Recent("s1"))
}

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"normal message", "привет, как дела?", false},
		{"empty", "", true},
		{"too many bytes", string(make([]byte, 5000)), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.text, 4096, 2000)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTextCharLimit(t *testing.T) {
	// 2001 two-byte runes stay under the byte limit but exceed the char limit.
	runes := make([]rune, 2001)
	for i := range runes {
		runes[i] = 'я'
	}
	assert.Error(t, ValidateText(string(runes), 8192, 2000))
}
