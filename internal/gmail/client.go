package gmail

import (
	"context"
	"errors"
)

// ErrUnauthorized marks failures caused by missing or revoked credentials.
var ErrUnauthorized = errors.New("gmail: unauthorized")

// Client is the narrow Gmail surface required by gmail-cleaner.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	Snippet(ctx context.Context, id MessageID) (string, error)
	BatchDelete(ctx context.Context, ids []MessageID) error
	BatchModify(ctx context.Context, ids []MessageID, ops ModifyOps) error
	ListLabels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, name string) (Label, error)
}
