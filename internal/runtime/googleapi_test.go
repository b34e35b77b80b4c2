package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	gc "github.com/joshsymonds/gmail-cleaner/internal/gmail"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   map[string]any
}

type fakeGmailAPI struct {
	requests []recordedRequest
	status   int
}

func (f *fakeGmailAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.body)
	}
	f.requests = append(f.requests, rec)

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"error":{"code":`+strconv.Itoa(f.status)+`,"message":"fail"}}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/messages") && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"messages":[{"id":"m1"},{"id":"m2","snippet":"hello"}],"nextPageToken":"p2"}`)
	case strings.HasSuffix(r.URL.Path, "/messages/m1"):
		_, _ = io.WriteString(w, `{"snippet":"fetched preview"}`)
	case strings.HasSuffix(r.URL.Path, "/labels") && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"labels":[{"id":"INBOX","name":"INBOX"},{"id":"Label_1","name":"to delete"}]}`)
	case strings.HasSuffix(r.URL.Path, "/labels") && r.Method == http.MethodPost:
		_, _ = io.WriteString(w, `{"id":"Label_9","name":"fresh"}`)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestClient(t *testing.T, api *fakeGmailAPI) gc.Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	svc, err := gmail.NewService(
		context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	be.Err(t, err, nil)
	return NewGoogleAPIClient(svc, slogDiscard())
}

func TestGoogleClientList(t *testing.T) {
	api := &fakeGmailAPI{}
	client := newTestClient(t, api)

	page, err := client.List(context.Background(), gc.Query{Raw: `"news"`}, "p1", 500)
	be.Err(t, err, nil)
	be.Equal(t, page.NextPageToken, "p2")
	be.Equal(t, page.Messages, []gc.MessageRef{{ID: "m1"}, {ID: "m2", Snippet: "hello"}})

	be.Equal(t, len(api.requests), 1)
	q := api.requests[0].query
	be.True(t, strings.Contains(q, "maxResults=500"))
	be.True(t, strings.Contains(q, "pageToken=p1"))
	be.True(t, strings.Contains(q, "q=%22news%22"))
}

func TestGoogleClientSnippet(t *testing.T) {
	api := &fakeGmailAPI{}
	client := newTestClient(t, api)

	snippet, err := client.Snippet(context.Background(), "m1")
	be.Err(t, err, nil)
	be.Equal(t, snippet, "fetched preview")
	be.True(t, strings.Contains(api.requests[0].query, "format=minimal"))
}

func TestGoogleClientBatchDelete(t *testing.T) {
	api := &fakeGmailAPI{}
	client := newTestClient(t, api)

	be.Err(t, client.BatchDelete(context.Background(), []gc.MessageID{"a", "b"}), nil)
	req := api.requests[0]
	be.Equal(t, req.method, http.MethodPost)
	be.True(t, strings.HasSuffix(req.path, "/messages/batchDelete"))
	be.Equal(t, req.body["ids"], any([]any{"a", "b"}))
}

func TestGoogleClientBatchModify(t *testing.T) {
	api := &fakeGmailAPI{}
	client := newTestClient(t, api)

	ops := gc.ModifyOps{AddLabels: []gc.LabelID{"Label_1"}, RemoveLabels: []gc.LabelID{gc.LabelInbox}}
	be.Err(t, client.BatchModify(context.Background(), []gc.MessageID{"a"}, ops), nil)
	req := api.requests[0]
	be.True(t, strings.HasSuffix(req.path, "/messages/batchModify"))
	be.Equal(t, req.body["addLabelIds"], any([]any{"Label_1"}))
	be.Equal(t, req.body["removeLabelIds"], any([]any{"INBOX"}))
}

func TestGoogleClientLabels(t *testing.T) {
	api := &fakeGmailAPI{}
	client := newTestClient(t, api)

	labels, err := client.ListLabels(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, labels, []gc.Label{{ID: "INBOX", Name: "INBOX"}, {ID: "Label_1", Name: "to delete"}})

	created, err := client.CreateLabel(context.Background(), "fresh")
	be.Err(t, err, nil)
	be.Equal(t, created, gc.Label{ID: "Label_9", Name: "fresh"})
	body := api.requests[1].body
	be.Equal(t, body["labelListVisibility"], any("labelShow"))
	be.Equal(t, body["messageListVisibility"], any("show"))
}

func TestGoogleClientUnauthorized(t *testing.T) {
	api := &fakeGmailAPI{status: http.StatusUnauthorized}
	client := newTestClient(t, api)

	_, err := client.ListLabels(context.Background())
	be.True(t, errors.Is(err, gc.ErrUnauthorized))
}

func TestGoogleClientBreakerOpens(t *testing.T) {
	api := &fakeGmailAPI{status: http.StatusServiceUnavailable}
	client := newTestClient(t, api)

	for range 5 {
		err := client.BatchDelete(context.Background(), []gc.MessageID{"a"})
		be.Err(t, err)
	}
	err := client.BatchDelete(context.Background(), []gc.MessageID{"a"})
	be.Err(t, err)
	be.True(t, strings.Contains(err.Error(), "gmail api unavailable"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "401", err: &googleapi.Error{Code: http.StatusUnauthorized}, want: true},
		{name: "403", err: &googleapi.Error{Code: http.StatusForbidden}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			be.Equal(t, errors.Is(classify(tc.err), gc.ErrUnauthorized), tc.want)
		})
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
