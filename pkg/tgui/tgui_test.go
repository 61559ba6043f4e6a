package tgui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataAndParse(t *testing.T) {
	d, err := Data("leaveall", "yes", "-100:7")
	require.NoError(t, err)
	assert.Equal(t, "leaveall:yes:-100:7", d)

	scope, action, payload, ok := Parse(d)
	require.True(t, ok)
	assert.Equal(t, "leaveall", scope)
	assert.Equal(t, "yes", action)
	assert.Equal(t, "-100:7", payload)

	_, _, payload, ok = Parse("leaveall:no")
	require.True(t, ok)
	assert.Empty(t, payload)

	_, _, _, ok = Parse("garbage")
	assert.False(t, ok)

	_, err = Data("s", "a", strings.Repeat("x", MaxCallbackDataLen))
	assert.ErrorIs(t, err, ErrCallbackDataTooLong)
}

func TestHTML(t *testing.T) {
	assert.Equal(t, H("<code>a&lt;b</code>"), Code("a<b"))
	assert.Equal(t, H("<b>x</b>\ny"), JoinH("\n", B("x"), "  ", Esc("y")))
}

func TestConfirm(t *testing.T) {
	rm := Confirm("Yes", "s:yes", "No", "s:no")
	require.Len(t, rm.InlineKeyboard, 1)
	require.Len(t, rm.InlineKeyboard[0], 2)
	assert.Equal(t, "s:yes", rm.InlineKeyboard[0][0].Data)
	assert.Equal(t, "No", rm.InlineKeyboard[0][1].Text)
}
