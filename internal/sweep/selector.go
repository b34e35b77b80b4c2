package sweep

import (
	"context"
	"fmt"

	"github.com/joshsymonds/gmail-cleaner/internal/gmail"
	"github.com/joshsymonds/gmail-cleaner/internal/whitelist"
)

// SearchError reports a search that stopped early. Refs collected before the
// failure are still returned alongside it.
type SearchError struct {
	Page      int
	Collected int
	Err       error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search stopped at page %d after %d matches: %v", e.Page, e.Collected, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Select pages through every message matching q and drops those whose snippet
// contains a whitelist phrase. The result is deduplicated in arrival order.
// On a failed page it returns what it has so far with a *SearchError.
func (s *Service) Select(ctx context.Context, q gmail.Query, phrases []string) ([]gmail.MessageRef, error) {
	var (
		refs  []gmail.MessageRef
		token string
		seen  = map[gmail.MessageID]struct{}{}
	)
	for page := 1; ; page++ {
		res, err := s.listMessages(ctx, q, token)
		if err != nil {
			return refs, &SearchError{Page: page, Collected: len(refs), Err: err}
		}
		for _, m := range res.Messages {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			keep, admitErr := s.admit(ctx, m, phrases)
			if admitErr != nil {
				return refs, &SearchError{Page: page, Collected: len(refs), Err: admitErr}
			}
			if keep {
				refs = append(refs, m)
			}
		}
		if res.NextPageToken == "" {
			return refs, nil
		}
		token = res.NextPageToken
	}
}

func (s *Service) listMessages(ctx context.Context, q gmail.Query, token string) (gmail.ListPage, error) {
	if err := s.wait(ctx, "rate limit messages"); err != nil {
		return gmail.ListPage{}, err
	}
	page, err := s.Client.List(ctx, q, token, s.pageSize())
	if err != nil {
		return gmail.ListPage{}, fmt.Errorf("list messages: %w", err)
	}
	return page, nil
}

// admit applies the whitelist to m, fetching its snippet when the listing had
// none. A message whose snippet cannot be read is kept out of the selection.
func (s *Service) admit(ctx context.Context, m gmail.MessageRef, phrases []string) (bool, error) {
	if len(phrases) == 0 {
		return true, nil
	}
	snippet := m.Snippet
	if snippet == "" {
		if err := s.wait(ctx, "rate limit snippet"); err != nil {
			return false, err
		}
		fetched, err := s.Client.Snippet(ctx, m.ID)
		if err != nil {
			if fatal(ctx, err) {
				return false, fmt.Errorf("get snippet %s: %w", m.ID, err)
			}
			s.Logger.WarnContext(ctx, "skipping message with unreadable snippet", "id", m.ID, "error", err)
			return false, nil
		}
		snippet = fetched
	}
	if phrase, hit := whitelist.Match(snippet, phrases); hit {
		s.Logger.DebugContext(ctx, "protected by whitelist", "id", m.ID, "phrase", phrase)
		return false, nil
	}
	return true, nil
}
