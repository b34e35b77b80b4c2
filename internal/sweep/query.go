package sweep

import (
	"errors"
	"strings"

	"github.com/joshsymonds/gmail-cleaner/internal/gmail"
)

// ErrUnsafeQuery is returned when a query would match the whole mailbox.
var ErrUnsafeQuery = errors.New("refusing to select the entire mailbox: a search query or label is required")

// Criteria describes what to select.
type Criteria struct {
	Search  string   // free text, matched as an exact phrase unless Raw
	Raw     bool     // pass Search through as Gmail query syntax
	Label   string   // restrict to this label
	Phrases []string // whitelist phrases to exclude
}

// BuildQuery renders c as a Gmail query, e.g.
// `label:"to delete" "newsletter" -"keep this"`.
func BuildQuery(c Criteria) (gmail.Query, error) {
	search := strings.TrimSpace(c.Search)
	if !c.Raw {
		search = quote(search)
	}
	label := quote(c.Label)
	if search == "" && label == "" {
		return gmail.Query{}, ErrUnsafeQuery
	}

	parts := make([]string, 0, len(c.Phrases)+2)
	if label != "" {
		parts = append(parts, "label:"+label)
	}
	if search != "" {
		parts = append(parts, search)
	}
	for _, p := range c.Phrases {
		if term := quote(p); term != "" {
			parts = append(parts, "-"+term)
		}
	}
	return gmail.Query{Raw: strings.Join(parts, " ")}, nil
}

// quote wraps s in double quotes. Gmail has no escape for embedded quotes, so
// they are dropped.
func quote(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
	if s == "" {
		return ""
	}
	return `"` + s + `"`
}
