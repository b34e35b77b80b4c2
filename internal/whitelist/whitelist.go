// Package whitelist persists the phrases that protect messages from cleanup.
package whitelist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPhrases seed a whitelist file that does not exist yet.
var DefaultPhrases = []string{
	"order confirmation",
	"password reset",
	"security alert",
}

// Whitelist is an ordered, case-insensitively unique set of phrases backed by
// a text file with one phrase per line.
type Whitelist struct {
	path    string
	phrases []string
}

// New returns an in-memory whitelist bound to path. Nothing is read or written.
func New(path string, phrases []string) *Whitelist {
	w := &Whitelist{path: path}
	for _, p := range phrases {
		w.insert(p)
	}
	return w
}

// Load reads the whitelist at path, creating it with DefaultPhrases if it is
// missing.
func Load(path string) (*Whitelist, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path chosen by the user
	if errors.Is(err, fs.ErrNotExist) {
		w := New(path, DefaultPhrases)
		if saveErr := w.Save(); saveErr != nil {
			return nil, fmt.Errorf("create default whitelist: %w", saveErr)
		}
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read whitelist %s: %w", path, err)
	}
	return New(path, strings.Split(string(data), "\n")), nil
}

// Path returns the backing file.
func (w *Whitelist) Path() string { return w.path }

// Phrases returns a copy of the phrases in file order.
func (w *Whitelist) Phrases() []string {
	return append([]string(nil), w.phrases...)
}

// Len reports the number of phrases.
func (w *Whitelist) Len() int { return len(w.phrases) }

// Add appends phrases that are not already present (ignoring case) and
// persists the file when anything changed. It returns the number added.
func (w *Whitelist) Add(phrases ...string) (int, error) {
	added := 0
	for _, p := range phrases {
		if w.insert(p) {
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	if err := w.Save(); err != nil {
		return added, err
	}
	return added, nil
}

// Save writes the phrases to disk, newline-joined.
func (w *Whitelist) Save() error {
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create whitelist directory: %w", err)
		}
	}
	body := strings.Join(w.phrases, "\n")
	if body != "" {
		body += "\n"
	}
	if err := os.WriteFile(w.path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("write whitelist %s: %w", w.path, err)
	}
	return nil
}

func (w *Whitelist) insert(phrase string) bool {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return false
	}
	for _, existing := range w.phrases {
		if strings.EqualFold(existing, phrase) {
			return false
		}
	}
	w.phrases = append(w.phrases, phrase)
	return true
}

// Match returns the first phrase that is a case-insensitive substring of
// snippet.
func Match(snippet string, phrases []string) (string, bool) {
	lower := strings.ToLower(snippet)
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}
