package router

import (
	"strings"

	"pacebot/pkg/tgui"
)

// helpText renders the command menu in HTML parse mode. Commands the caller
// may not run are marked with a lock.
func (r *Router) helpText(caller int64) string {
	r.mu.RLock()
	cmds := append([]*Command(nil), r.ordered...)
	r.mu.RUnlock()

	lines := []string{
		"⚡ " + tgui.B("pacebot").String(),
		"━━━━━━━━━━━━━━━━━━",
	}
	for _, group := range []Access{AccessEveryone, AccessSudo, AccessOwner} {
		var rows []string
		for _, c := range cmds {
			if c.Access != group {
				continue
			}
			usage := strings.TrimSpace(c.Usage)
			if usage == "" {
				usage = "/" + c.Name
			}
			row := "• " + tgui.Code(usage).String()
			if d := strings.TrimSpace(c.Description); d != "" {
				row += " ~ " + tgui.Esc(d).String()
			}
			if !r.allowed(c.Access, caller) {
				row = "🔒 " + row
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			continue
		}
		lines = append(lines, "", tgui.B(groupTitle(group)).String())
		lines = append(lines, rows...)
	}
	lines = append(lines, "", "<i>Adaptive speed: delays rise automatically on flood waits.</i>")
	return strings.Join(lines, "\n")
}

func groupTitle(a Access) string {
	switch a {
	case AccessSudo:
		return "Sudo"
	case AccessOwner:
		return "Owner"
	default:
		return "General"
	}
}
