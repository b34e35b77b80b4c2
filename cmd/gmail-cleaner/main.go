package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/joshsymonds/gmail-cleaner/internal/config"
	"github.com/joshsymonds/gmail-cleaner/internal/rate"
	"github.com/joshsymonds/gmail-cleaner/internal/runtime"
	"github.com/joshsymonds/gmail-cleaner/internal/sweep"
	"github.com/joshsymonds/gmail-cleaner/internal/whitelist"
)

// cli mirrors the command line. Action flags are resolved by precedence
// rather than rejected when combined.
type cli struct {
	Query        string   `arg:"" optional:"" help:"Gmail search query selecting the messages to act on."`
	Whitelist    string   `short:"w" help:"File of protected phrases, one per line (default: whitelist.txt)." type:"path"`
	AddWhitelist []string `name:"add-whitelist" sep:"none" help:"Append a phrase to the whitelist before searching (repeatable)."`
	Archive      bool     `short:"a" help:"Archive matching messages instead of moving them."`
	MoveToDelete bool     `name:"move-to-delete" help:"(default) Move matching messages to the cleanup label."`
	Permanently  bool     `short:"p" help:"Delete matching messages permanently. Use with caution!"`
	Clean        bool     `short:"c" help:"Permanently delete everything in the cleanup label. Use with caution!"`
	RemoveToken  bool     `short:"r" name:"remove-token" help:"Remove the stored OAuth token to force re-authentication."`
	Raw          bool     `name:"raw" help:"Treat the query as Gmail search syntax instead of an exact phrase."`
	Label        string   `help:"Cleanup label name (default: to delete)."`
	DryRun       bool     `name:"dry-run" help:"Show what would be affected without changing anything."`
	Report       string   `help:"Write a JSON summary of the run to this path." type:"path"`
	Config       string   `help:"Path to config file (default: ~/.gmail-cleaner/config.yaml)." type:"path"`
	Verbose      bool     `short:"v" help:"Verbose logging."`
}

func main() {
	var args cli
	kong.Parse(&args,
		kong.Name("gmail-cleaner"),
		kong.Description("Delete, archive, or move Gmail messages to a 'to delete' label, "+
			"skipping any whose preview contains a whitelisted phrase."),
		kong.UsageOnError(),
	)

	logger := runtime.NewLogger(os.Stderr, args.Verbose)
	if err := run(args, logger); err != nil {
		logger.Error("gmail-cleaner failed", "error", err)
		os.Exit(1)
	}
}

func run(args cli, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(args.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(&cfg, args)

	if args.RemoveToken {
		return removeToken(cfg, os.Stdout)
	}

	action := sweep.ResolveAction(args.Permanently, args.Archive, args.Clean)
	if action != sweep.ActionClean && args.Query == "" {
		return errors.New("search query is required unless --clean or --remove-token is used")
	}
	if action == sweep.ActionClean && args.Query != "" {
		logger.Warn("search query is ignored with --clean", "query", args.Query)
	}
	// Reject queries that would select the whole mailbox before authenticating.
	if _, err := sweep.BuildQuery(criteria(action, args.Query, args.Raw, cfg.Label)); err != nil {
		return err
	}

	wl := loadWhitelist(cfg.Whitelist, args.AddWhitelist, logger)

	client, err := runtime.NewGmailClient(ctx, cfg, os.Stdout, logger)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	var limiter rate.Limiter
	if cfg.RPS > 0 {
		bucket := rate.NewTokenBucket(cfg.RPS)
		limiter = bucket
		defer bucket.Stop()
	}

	svc := sweep.NewService(client, limiter, logger)
	svc.Pacer = rate.NewPacer(cfg.BatchPause)
	svc.PageSize = cfg.PageSize
	svc.BatchSize = cfg.BatchSize

	spec := sweep.Spec{
		Action:  action,
		Search:  args.Query,
		Raw:     args.Raw,
		Phrases: wl.Phrases(),
		Label:   cfg.Label,
		DryRun:  args.DryRun,
	}
	res, runErr := svc.Run(ctx, spec)
	if args.Report != "" {
		if writeErr := sweep.WriteJSON(res, args.Report); writeErr != nil {
			logger.Error("write report", "path", args.Report, "error", writeErr)
		}
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", action, runErr)
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d messages were not processed", len(res.Failed), res.Selected)
	}
	return nil
}

func criteria(action sweep.Action, search string, raw bool, label string) sweep.Criteria {
	if action == sweep.ActionClean {
		return sweep.Criteria{Label: label}
	}
	return sweep.Criteria{Search: search, Raw: raw}
}

func applyFlags(cfg *config.Config, args cli) {
	if args.Whitelist != "" {
		cfg.Whitelist = args.Whitelist
	}
	if args.Label != "" {
		cfg.Label = args.Label
	}
}

// loadWhitelist never fails the run: on I/O errors it logs and protects
// nothing beyond the phrases given on the command line.
func loadWhitelist(path string, extra []string, logger *slog.Logger) *whitelist.Whitelist {
	wl, err := whitelist.Load(path)
	if err != nil {
		logger.Error("whitelist unavailable, continuing without it", "path", path, "error", err)
		return whitelist.New(path, extra)
	}
	if len(extra) > 0 {
		added, addErr := wl.Add(extra...)
		if addErr != nil {
			logger.Error("save whitelist", "path", wl.Path(), "error", addErr)
		}
		logger.Info("whitelist updated", "path", wl.Path(), "added", added, "total", wl.Len())
	}
	logger.Debug("whitelist loaded", "path", wl.Path(), "phrases", wl.Len())
	return wl
}

func removeToken(cfg config.Config, out io.Writer) error {
	removed, location, err := runtime.RemoveToken(cfg)
	if err != nil {
		return fmt.Errorf("remove oauth token: %w", err)
	}
	if removed {
		fmt.Fprintf(out, "Successfully removed OAuth token: %s\n", location)
		return nil
	}
	fmt.Fprintf(out, "No OAuth token found at: %s\n", location)
	return nil
}
