// internal/runtime/googleapi.go: adapts *gmail.Service to the gmail.Client interface
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	gc "github.com/joshsymonds/gmail-cleaner/internal/gmail"
)

const user = "me"

// Label visibility used for labels the cleaner creates.
const (
	labelListVisibility   = "labelShow"
	messageListVisibility = "show"
)

type googleClient struct {
	svc *gmail.Service
	cb  *gobreaker.CircuitBreaker
}

// NewGoogleAPIClient wraps svc; every call goes through a circuit breaker so
// a failing API stops being hammered batch after batch.
func NewGoogleAPIClient(svc *gmail.Service, logger *slog.Logger) gc.Client {
	return &googleClient{svc: svc, cb: newBreaker(logger)}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// auth and request errors say nothing about API health
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string, pageSize int) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List(user).
		Q(q.Raw).
		MaxResults(int64(pageSize)).
		Fields("messages(id,snippet)", "nextPageToken")
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	var res *gmail.ListMessagesResponse
	err := g.do("users.messages.list", func() error {
		var err error
		res, err = call.Context(ctx).Do()
		return err
	})
	if err != nil {
		return gc.ListPage{}, err
	}
	page := gc.ListPage{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.Messages = append(page.Messages, gc.MessageRef{ID: gc.MessageID(m.Id), Snippet: m.Snippet})
	}
	return page, nil
}

func (g *googleClient) Snippet(ctx context.Context, id gc.MessageID) (string, error) {
	var msg *gmail.Message
	err := g.do("users.messages.get", func() error {
		var err error
		msg, err = g.svc.Users.Messages.Get(user, string(id)).
			Format("minimal").
			Fields("snippet").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return "", err
	}
	return msg.Snippet, nil
}

func (g *googleClient) BatchDelete(ctx context.Context, ids []gc.MessageID) error {
	req := &gmail.BatchDeleteMessagesRequest{Ids: toStrings(ids)}
	return g.do("users.messages.batchDelete", func() error {
		return g.svc.Users.Messages.BatchDelete(user, req).Context(ctx).Do()
	})
}

func (g *googleClient) BatchModify(ctx context.Context, ids []gc.MessageID, ops gc.ModifyOps) error {
	req := &gmail.BatchModifyMessagesRequest{Ids: toStrings(ids)}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = labelStrings(ops.AddLabels)
	}
	if len(ops.RemoveLabels) > 0 {
		req.RemoveLabelIds = labelStrings(ops.RemoveLabels)
	}
	return g.do("users.messages.batchModify", func() error {
		return g.svc.Users.Messages.BatchModify(user, req).Context(ctx).Do()
	})
}

func (g *googleClient) ListLabels(ctx context.Context) ([]gc.Label, error) {
	var lr *gmail.ListLabelsResponse
	err := g.do("users.labels.list", func() error {
		var err error
		lr, err = g.svc.Users.Labels.List(user).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	labels := make([]gc.Label, 0, len(lr.Labels))
	for _, l := range lr.Labels {
		labels = append(labels, gc.Label{ID: gc.LabelID(l.Id), Name: l.Name})
	}
	return labels, nil
}

func (g *googleClient) CreateLabel(ctx context.Context, name string) (gc.Label, error) {
	body := &gmail.Label{
		Name:                  name,
		LabelListVisibility:   labelListVisibility,
		MessageListVisibility: messageListVisibility,
	}
	var created *gmail.Label
	err := g.do("users.labels.create", func() error {
		var err error
		created, err = g.svc.Users.Labels.Create(user, body).Context(ctx).Do()
		return err
	})
	if err != nil {
		return gc.Label{}, err
	}
	return gc.Label{ID: gc.LabelID(created.Id), Name: created.Name}, nil
}

func (g *googleClient) do(op string, fn func() error) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: gmail api unavailable: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, classify(err))
}

// classify tags credential failures with gc.ErrUnauthorized.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", gc.ErrUnauthorized, err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", gc.ErrUnauthorized, err)
	}
	return err
}

func isClientError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
}

func toStrings(ids []gc.MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func labelStrings(ids []gc.LabelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
