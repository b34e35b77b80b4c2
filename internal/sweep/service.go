// Package sweep selects Gmail messages by query, filters them through the
// whitelist and applies a bulk action after confirmation.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joshsymonds/gmail-cleaner/internal/config"
	"github.com/joshsymonds/gmail-cleaner/internal/gmail"
	"github.com/joshsymonds/gmail-cleaner/internal/rate"
)

// Spec describes one cleanup run.
type Spec struct {
	Action  Action
	Search  string
	Raw     bool
	Phrases []string
	// Label is the move target, or the label emptied by ActionClean.
	Label  string
	DryRun bool
}

// Result summarizes a run.
type Result struct {
	Action    Action            `json:"action"`
	Query     string            `json:"query"`
	Selected  int               `json:"selected"`
	Processed int               `json:"processed"`
	Failed    []gmail.MessageID `json:"failed,omitempty"`
	Partial   bool              `json:"partial"`
	Cancelled bool              `json:"cancelled"`
	DryRun    bool              `json:"dry_run"`
}

type Service struct {
	Client    gmail.Client
	Limiter   rate.Limiter // gates list, snippet and label calls
	Pacer     rate.Limiter // waited between mutation batches
	Logger    *slog.Logger
	Confirm   Confirmer
	Out       io.Writer
	PageSize  int
	BatchSize int
}

// NewService constructs a Service that prompts on stdin/stdout and pauses
// config.DefaultBatchPause between batches.
func NewService(client gmail.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:    client,
		Limiter:   limiter,
		Pacer:     rate.NewPacer(config.DefaultBatchPause),
		Logger:    logger,
		Confirm:   PromptConfirmer{In: os.Stdin, Out: os.Stdout},
		Out:       os.Stdout,
		PageSize:  gmail.MaxPageSize,
		BatchSize: gmail.MaxBatchSize,
	}
}

// Run executes spec end to end: build the query, resolve the target label,
// select, summarize, confirm and apply.
func (s *Service) Run(ctx context.Context, spec Spec) (Result, error) {
	res := Result{Action: spec.Action, DryRun: spec.DryRun}
	if !spec.Action.Valid() {
		return res, fmt.Errorf("unknown action %q", spec.Action)
	}

	criteria := Criteria{Search: spec.Search, Raw: spec.Raw, Phrases: spec.Phrases}
	if spec.Action == ActionClean {
		criteria = Criteria{Label: spec.Label, Phrases: spec.Phrases}
	}
	q, err := BuildQuery(criteria)
	if err != nil {
		return res, err
	}
	res.Query = q.Raw

	var labelID gmail.LabelID
	if spec.Action == ActionMoveToLabel && !spec.DryRun {
		labelID, err = s.ResolveOrCreateLabel(ctx, spec.Label)
		if err != nil {
			return res, fmt.Errorf("resolve label %q: %w", spec.Label, err)
		}
	}

	if spec.Action == ActionClean {
		fmt.Fprintf(s.Out, "Searching for emails with label '%s'...\n", spec.Label)
	} else {
		fmt.Fprintf(s.Out, "Searching for emails containing '%s'...\n", spec.Search)
	}
	s.Logger.DebugContext(ctx, "selecting", "query", q.Raw, "phrases", len(spec.Phrases))

	refs, err := s.Select(ctx, q, spec.Phrases)
	res.Selected = len(refs)
	if err != nil {
		if fatal(ctx, err) {
			return res, err
		}
		res.Partial = true
		s.Logger.WarnContext(ctx, "search aborted, continuing with partial results",
			"collected", len(refs), "error", err)
	}

	if len(refs) == 0 {
		fmt.Fprintln(s.Out, "No emails found matching the search criteria.")
		return res, nil
	}

	fmt.Fprintln(s.Out, spec.Action.Summary(len(refs), spec.Label))
	if res.Partial {
		fmt.Fprintln(s.Out, "Note: the search stopped early; only the matches found so far are included.")
	}
	if spec.DryRun {
		fmt.Fprintln(s.Out, "Dry run: no changes made.")
		return res, nil
	}

	ok, err := s.Confirm.Confirm(ctx, ConfirmPrompt)
	if err != nil {
		return res, fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		res.Cancelled = true
		fmt.Fprintln(s.Out, "Action cancelled.")
		return res, nil
	}

	out, err := s.Execute(ctx, spec.Action, gmail.IDs(refs), labelID)
	res.Processed = out.Processed
	res.Failed = out.Failed
	if err != nil {
		return res, err
	}
	if len(out.Failed) > 0 {
		s.Logger.WarnContext(ctx, "some batches failed", "failed", len(out.Failed), "processed", out.Processed)
	}
	return res, nil
}

func (s *Service) wait(ctx context.Context, operation string) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func (s *Service) pageSize() int {
	if s.PageSize <= 0 || s.PageSize > gmail.MaxPageSize {
		return gmail.MaxPageSize
	}
	return s.PageSize
}

func (s *Service) batchSize() int {
	if s.BatchSize <= 0 || s.BatchSize > gmail.MaxBatchSize {
		return gmail.MaxBatchSize
	}
	return s.BatchSize
}

// fatal reports errors that must end the run instead of being logged and
// skipped.
func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, gmail.ErrUnauthorized) || ctx.Err() != nil
}
