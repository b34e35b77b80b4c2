package sweep

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"github.com/joshsymonds/gmail-cleaner/internal/gmail"
)

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	res := Result{
		Action:    ActionDelete,
		Query:     `"newsletter"`,
		Selected:  3,
		Processed: 2,
		Failed:    []gmail.MessageID{"m3"},
	}
	be.Err(t, WriteJSON(res, path), nil)

	data, err := os.ReadFile(path)
	be.Err(t, err, nil)
	var got map[string]any
	be.Err(t, json.Unmarshal(data, &got), nil)
	be.Equal(t, got["action"], any("delete"))
	be.Equal(t, got["processed"], any(float64(2)))
	be.Equal(t, got["failed"], any([]any{"m3"}))

	info, err := os.Stat(path)
	be.Err(t, err, nil)
	be.Equal(t, info.Mode().Perm(), os.FileMode(0o600))
}

func TestWriteJSONRejectsEmptyPath(t *testing.T) {
	err := WriteJSON(Result{}, "  ")
	be.True(t, err != nil)
}
