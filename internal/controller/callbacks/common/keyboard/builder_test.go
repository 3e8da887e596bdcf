package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	kb := NewBuilder().
		Row(Button("End", "session_end:s1")).
		Row().
		Row(Button("Video", "display:s1:video"), Button("Split", "display:s1:split")).
		Build()

	assert.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "display:s1:split", kb.InlineKeyboard[1][1].CallbackData)
	assert.Nil(t, NewBuilder().Build())
}

func TestData(t *testing.T) {
	assert.Equal(t, "panel_retry:abc:video", Data("panel_retry:", "abc", "video"))
	assert.Equal(t, "session_stay:", Data("session_stay:"))
}
