package actions

import (
	"math/rand/v2"
	"strings"
)

var emojiPool = []string{
	"🔥", "⚡", "💥", "💀", "🕊", "💫", "🌪", "🐉", "👑", "🌟", "💎", "🎭", "🚀", "✨", "🔮",
	"🎯", "🌀", "🐺", "🦅", "🐍", "🎇", "🎆", "💠", "💣", "🧨", "🎉", "🎊", "🌈", "🌊", "🌙",
	"⭐", "🌞", "🌝", "🌛", "🌚", "☄️", "🌋", "🏆", "🥇", "🎖️", "🏅", "🎗️", "🏵️", "🌺", "🌸",
	"🌼", "🌻", "🌹", "⚓", "🛡️", "⚔️", "🪄", "🧿", "🪶", "🕹️", "🎮", "🎲", "🧩", "🎵", "🎶",
	"🎼", "🎧", "🎤", "🎷", "🎸", "🎺", "🥁", "📯", "📀", "📣", "📯", "🛸", "🛰️", "🏹", "🗡️",
	"🛡️", "🩸", "⚗️", "🔭", "🔬", "💉", "🧪", "📚", "📖", "📝", "✒️", "🖋️", "🖊️", "✏️", "📐",
	"📏", "🧭", "🔧", "⚙️", "🔩", "🧱", "🏗️", "🏛️", "🧭", "🗺️", "🧭", "🔔", "🔕", "💡", "🔦",
}

// Emojis draws distinct pool positions, so repeats only happen where the pool
// itself repeats an emoji.
type Emojis func(n int) []string

func RandomEmojis(n int) []string {
	n = min(n, len(emojiPool))
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(emojiPool))[:n] {
		out = append(out, emojiPool[i])
	}
	return out
}

func ultraTitle(e Emojis, text string) string {
	picks := e(6)
	left := strings.Join(picks[:min(3, len(picks))], " ")
	right := ""
	if len(picks) > 3 {
		right = strings.Join(picks[3:], " ")
	}
	return strings.TrimSpace(left + " " + text + " " + right)
}
