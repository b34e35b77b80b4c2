package runtime

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/joshsymonds/gmail-cleaner/internal/config"
	gc "github.com/joshsymonds/gmail-cleaner/internal/gmail"
)

// ScopeFullAccess is required by messages.batchDelete.
const ScopeFullAccess = gmail.MailGoogleComScope

const callbackTimeout = 10 * time.Second

// NewGmailClient authenticates with the stored token (running the browser
// consent flow when there is none or it no longer refreshes) and returns the
// Gmail adapter.
func NewGmailClient(ctx context.Context, cfg config.Config, out io.Writer, logger *slog.Logger) (gc.Client, error) {
	store, err := NewTokenStore(cfg)
	if err != nil {
		return nil, err
	}
	auth := &Authenticator{
		CredentialsPath: cfg.CredentialsPath,
		Store:           store,
		Out:             out,
		Logger:          logger,
	}
	ts, err := auth.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc, logger), nil
}

// Authenticator produces a token source for the installed-app OAuth client
// described by CredentialsPath.
type Authenticator struct {
	CredentialsPath string
	Store           TokenStore
	Out             io.Writer // consent URL is printed here
	Logger          *slog.Logger
}

// TokenSource returns a token source that persists refreshed tokens.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	secrets, err := os.ReadFile(a.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf(
			"read oauth client credentials %s (download a desktop OAuth client from Google Cloud Console): %w",
			a.CredentialsPath, err,
		)
	}
	oc, err := google.ConfigFromJSON(secrets, ScopeFullAccess)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client credentials: %w", err)
	}

	tok, err := a.Store.Load()
	switch {
	case errors.Is(err, ErrNoToken):
		tok = nil
	case err != nil:
		a.Logger.Warn("ignoring unreadable stored token", "location", a.Store.Location(), "error", err)
		tok = nil
	}

	if tok != nil {
		fresh, refreshErr := oc.TokenSource(ctx, tok).Token()
		if refreshErr == nil {
			return a.persisting(ctx, oc, tok, fresh)
		}
		a.Logger.Warn("stored token rejected, re-authorizing", "error", refreshErr)
	}

	tok, err = a.authorize(ctx, oc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gc.ErrUnauthorized, err)
	}
	if err := a.Store.Save(tok); err != nil {
		return nil, err
	}
	return a.persisting(ctx, oc, tok, tok)
}

func (a *Authenticator) persisting(
	ctx context.Context,
	oc *oauth2.Config,
	stored, fresh *oauth2.Token,
) (oauth2.TokenSource, error) {
	if fresh.AccessToken != stored.AccessToken {
		if err := a.Store.Save(fresh); err != nil {
			return nil, err
		}
	}
	return &savingTokenSource{
		base:  oc.TokenSource(ctx, fresh),
		store: a.Store,
		last:  fresh.AccessToken,
		log:   a.Logger,
	}, nil
}

// savingTokenSource writes the token back whenever the underlying source
// refreshes it.
type savingTokenSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store TokenStore
	last  string
	log   *slog.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if saveErr := s.store.Save(tok); saveErr != nil {
			s.log.Warn("persist refreshed token", "error", saveErr)
		}
	}
	return tok, nil
}

type callbackResult struct {
	code string
	err  error
}

// authorize runs the loopback redirect flow with PKCE.
func (a *Authenticator) authorize(ctx context.Context, oc *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}
	cfg := *oc
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/"

	state, err := randomState()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	fmt.Fprintf(a.Out, "Authorize gmail-cleaner by opening this URL in your browser:\n\n  %s\n\n", authURL)

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		ReadHeaderTimeout: callbackTimeout,
		Handler:           callbackHandler(state, results),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for authorization: %w", ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}
	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = errors.New("oauth callback state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("oauth callback missing code")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "gmail-cleaner is authorized. You can close this window.\n")
		}
		select {
		case results <- res:
		default:
		}
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RemoveToken deletes the stored token so the next run re-authorizes.
// It reports whether a token existed.
func RemoveToken(cfg config.Config) (bool, string, error) {
	store, err := NewTokenStore(cfg)
	if err != nil {
		return false, "", err
	}
	err = store.Remove()
	if errors.Is(err, ErrNoToken) {
		return false, store.Location(), nil
	}
	if err != nil {
		return false, store.Location(), err
	}
	return true, store.Location(), nil
}

// NewLogger builds the text logger used across the CLI.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
