package sweep

import "fmt"

// Action is the mutation applied to selected messages.
type Action string

const (
	ActionMoveToLabel Action = "move"
	ActionArchive     Action = "archive"
	ActionDelete      Action = "delete"
	// ActionClean permanently deletes whatever sits in the cleanup label.
	ActionClean Action = "clean"
)

// ResolveAction applies flag precedence:
// permanently > archive > clean > move (the default).
func ResolveAction(permanently, archive, clean bool) Action {
	switch {
	case permanently:
		return ActionDelete
	case archive:
		return ActionArchive
	case clean:
		return ActionClean
	default:
		return ActionMoveToLabel
	}
}

func (a Action) Valid() bool {
	switch a {
	case ActionMoveToLabel, ActionArchive, ActionDelete, ActionClean:
		return true
	default:
		return false
	}
}

// Destructive reports whether the action cannot be undone.
func (a Action) Destructive() bool {
	return a == ActionDelete || a == ActionClean
}

func (a Action) verb() string {
	switch a {
	case ActionArchive:
		return "archive"
	case ActionMoveToLabel:
		return "move"
	default:
		return "delete"
	}
}

func (a Action) past() string {
	switch a {
	case ActionArchive:
		return "Archived"
	case ActionMoveToLabel:
		return "Moved"
	default:
		return "Deleted"
	}
}

func (a Action) gerund() string {
	switch a {
	case ActionArchive:
		return "archiving"
	case ActionMoveToLabel:
		return "moving"
	default:
		return "deleting"
	}
}

// Summary is the impact statement shown before confirmation.
// Destructive actions are prefixed with a warning.
func (a Action) Summary(count int, label string) string {
	var s string
	switch a {
	case ActionDelete:
		s = fmt.Sprintf("About to permanently delete %d emails. This action cannot be undone.", count)
	case ActionArchive:
		s = fmt.Sprintf(
			"About to archive %d emails. They will be moved out of the inbox but can be found in 'All Mail'.",
			count,
		)
	case ActionClean:
		s = fmt.Sprintf("About to permanently delete %d emails from '%s' label.", count, label)
	default:
		s = fmt.Sprintf(
			"About to move %d emails to the '%s' label. They will be removed from the inbox.",
			count, label,
		)
	}
	if a.Destructive() {
		return "WARNING: " + s
	}
	return s
}
