package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshsymonds/gmail-cleaner/internal/gmail"
)

// Outcome tallies an Execute call.
type Outcome struct {
	Batches   int
	Processed int
	// Failed holds the ids of batches the API rejected. They are not retried.
	Failed []gmail.MessageID
}

// Execute applies action to ids in consecutive batches of at most BatchSize,
// pausing on the Pacer between batches. A failed batch is logged and recorded
// and the next batch proceeds; only cancellation and credential failures stop
// the loop early.
func (s *Service) Execute(
	ctx context.Context,
	action Action,
	ids []gmail.MessageID,
	labelID gmail.LabelID,
) (Outcome, error) {
	var out Outcome
	if !action.Valid() {
		return out, fmt.Errorf("unknown action %q", action)
	}
	if action == ActionMoveToLabel && labelID == "" {
		return out, errors.New("move requires a target label")
	}
	if len(ids) == 0 {
		fmt.Fprintf(s.Out, "No emails to %s, nothing to do.\n", action.verb())
		return out, nil
	}

	size := s.batchSize()
	for start := 0; start < len(ids); start += size {
		if start > 0 {
			if err := s.pace(ctx); err != nil {
				return out, err
			}
		}
		end := min(start+size, len(ids))
		batch := ids[start:end]
		out.Batches++

		if err := s.mutate(ctx, action, batch, labelID); err != nil {
			out.Failed = append(out.Failed, batch...)
			s.Logger.ErrorContext(ctx, "batch failed",
				"action", string(action), "batch", out.Batches, "size", len(batch), "error", err)
			fmt.Fprintf(s.Out, "Error %s batch: %v\n", action.gerund(), err)
			if fatal(ctx, err) {
				return out, err
			}
			continue
		}
		out.Processed += len(batch)
		fmt.Fprintf(s.Out, "%s %d emails (total: %d)\n", action.past(), len(batch), out.Processed)
	}
	return out, nil
}

func (s *Service) mutate(ctx context.Context, action Action, batch []gmail.MessageID, labelID gmail.LabelID) error {
	switch action {
	case ActionDelete, ActionClean:
		return s.Client.BatchDelete(ctx, batch)
	case ActionArchive:
		return s.Client.BatchModify(ctx, batch, gmail.ModifyOps{
			RemoveLabels: []gmail.LabelID{gmail.LabelInbox},
		})
	case ActionMoveToLabel:
		return s.Client.BatchModify(ctx, batch, gmail.ModifyOps{
			AddLabels:    []gmail.LabelID{labelID},
			RemoveLabels: []gmail.LabelID{gmail.LabelInbox},
		})
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (s *Service) pace(ctx context.Context) error {
	if s.Pacer == nil {
		return nil
	}
	if err := s.Pacer.Wait(ctx); err != nil {
		return fmt.Errorf("pause between batches: %w", err)
	}
	return nil
}
