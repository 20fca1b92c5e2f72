package diff

import (
	"fmt"
	"strings"
)

// Format renders a human-reviewable summary of a collection diff.
func Format(d CollectionDiff) string {
	if d.IsEmpty() {
		return "No changes"
	}
	var b strings.Builder
	if len(d.Added) > 0 {
		fmt.Fprintf(&b, "Added (%d):\n", len(d.Added))
		for _, it := range d.Added {
			fmt.Fprintf(&b, "  + %s\n", label(it.ID))
		}
	}
	if len(d.Removed) > 0 {
		fmt.Fprintf(&b, "Removed (%d):\n", len(d.Removed))
		for _, it := range d.Removed {
			fmt.Fprintf(&b, "  - %s\n", label(it.ID))
		}
	}
	if len(d.Changed) > 0 {
		fmt.Fprintf(&b, "Changed (%d):\n", len(d.Changed))
		for _, c := range d.Changed {
			fmt.Fprintf(&b, "  ~ %s: %s\n", c.ID, strings.Join(c.Fields.Paths(), ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func label(id string) string {
	if id == "" {
		return "(no id)"
	}
	return id
}
