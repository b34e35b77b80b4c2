package sweep

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ConfirmPrompt is shown before any mailbox-altering action.
const ConfirmPrompt = "Type 'y' to proceed, or any other key to cancel: "

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// PromptConfirmer reads a single line from In; only "y" (any case) approves.
// Cancelling ctx abandons the read.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

type lineResult struct {
	line string
	err  error
}

func (p PromptConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if _, err := io.WriteString(p.Out, prompt); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}
	read := make(chan lineResult, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		read <- lineResult{line: line, err: err}
	}()

	var res lineResult
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("read confirmation: %w", ctx.Err())
	case res = <-read:
	}
	if res.err != nil && !errors.Is(res.err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", res.err)
	}
	return strings.EqualFold(strings.TrimSpace(res.line), "y"), nil
}
