package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joshsymonds/gmail-cleaner/internal/gmail"
)

// ResolveOrCreateLabel returns the id of the label called name (ignoring
// case), creating a visible user label when none exists.
func (s *Service) ResolveOrCreateLabel(ctx context.Context, name string) (gmail.LabelID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("label name must not be empty")
	}
	if err := s.wait(ctx, "rate limit labels"); err != nil {
		return "", err
	}
	labels, err := s.Client.ListLabels(ctx)
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range labels {
		if strings.EqualFold(l.Name, name) {
			return l.ID, nil
		}
	}

	s.Logger.InfoContext(ctx, "label not found, creating it", "label", name)
	fmt.Fprintf(s.Out, "Label '%s' not found, creating it.\n", name)
	created, err := s.Client.CreateLabel(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create label: %w", err)
	}
	return created.ID, nil
}
