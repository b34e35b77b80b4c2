package gmail

type MessageID string
type LabelID string

// System labels referenced by the cleaner.
const (
	LabelInbox LabelID = "INBOX"
)

// Limits imposed by the Gmail API.
const (
	MaxPageSize  = 500
	MaxBatchSize = 1000
)

// MessageRef is a search hit: the message id plus its preview text, when known.
type MessageRef struct {
	ID      MessageID
	Snippet string
}

type ListPage struct {
	Messages      []MessageRef
	NextPageToken string
}

type Label struct {
	ID   LabelID
	Name string
}

type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

type Query struct {
	Raw string // Gmail query string, already formed (e.g., `"newsletter" -"keep this"`)
}

// IDs returns the ids of refs in order.
func IDs(refs []MessageRef) []MessageID {
	out := make([]MessageID, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ID)
	}
	return out
}
