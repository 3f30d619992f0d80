package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ppiankov/policydeck/internal/policy"
)

// PlainText returns a non-interactive table for piped output.
func PlainText(snap policy.Snapshot) string {
	if len(snap.Policies) == 0 {
		return "No policies."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-28s %-7s %-6s %-7s %s\n", "ID", "APP", "PROTO", "PORT", "ACTION", "STATUS")
	fmt.Fprintf(&b, "%-6s %-28s %-7s %-6s %-7s %s\n", "--", "---", "-----", "----", "------", "------")
	for i := range snap.Policies {
		p := &snap.Policies[i]
		port := strconv.Itoa(p.Port)
		if p.Port == 0 {
			port = "-"
		}
		fmt.Fprintf(&b, "%-6d %-28s %-7s %-6s %-7s %s\n",
			p.ID, p.AppName, p.Protocol, port, p.Action, policy.Classify(*p))
	}
	return b.String()
}

// WriteJSON serializes a snapshot to w, indented for human eyes.
func WriteJSON(w io.Writer, snap policy.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
