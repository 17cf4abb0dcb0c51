// Package client provides the Google OAuth2 HTTP client used by the Sheets exporter.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultCallbackPort is the port for the local OAuth callback server.
	DefaultCallbackPort = 8085
	callbackPath        = "/callback"
	// serverTimeout is how long to wait for the user to finish the consent screen.
	serverTimeout = 5 * time.Minute
)

const (
	// DefaultSecretFile is where the Google OAuth client credentials are read from.
	DefaultSecretFile = "data/client_secret.json"
	// DefaultTokenFile is where the OAuth token is cached between runs.
	DefaultTokenFile = "data/token.json"
)

// Config describes where credentials live and which scopes to request.
type Config struct {
	SecretFile   string
	TokenFile    string
	Scopes       []string
	CallbackPort int
}

func (c Config) withDefaults() Config {
	if c.SecretFile == "" {
		c.SecretFile = DefaultSecretFile
	}
	if c.TokenFile == "" {
		c.TokenFile = DefaultTokenFile
	}
	if c.CallbackPort == 0 {
		c.CallbackPort = DefaultCallbackPort
	}
	return c
}

// New returns an authorized HTTP client. A cached token is reused; without
// one the browser consent flow runs and the new token is saved.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*http.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	oauthCfg, err := oauthConfig(cfg)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		logger.Info("no cached token found, starting oauth flow", "token_file", cfg.TokenFile)
		tok, err = authorize(ctx, oauthCfg, cfg.CallbackPort, logger)
		if err != nil {
			return nil, err
		}
		if err := saveToken(cfg.TokenFile, tok); err != nil {
			logger.Error("failed to save token", "error", err)
		}
	}
	return oauthCfg.Client(ctx, tok), nil
}

// Authorize always runs the consent flow and overwrites the cached token.
func Authorize(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	oauthCfg, err := oauthConfig(cfg)
	if err != nil {
		return err
	}
	tok, err := authorize(ctx, oauthCfg, cfg.CallbackPort, logger)
	if err != nil {
		return err
	}
	return saveToken(cfg.TokenFile, tok)
}

// HasToken reports whether a readable token is cached at path.
func HasToken(path string) bool {
	_, err := tokenFromFile(path)
	return err == nil
}

func oauthConfig(cfg Config) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(b, cfg.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	oauthCfg.RedirectURL = fmt.Sprintf("http://localhost:%d%s", cfg.CallbackPort, callbackPath)
	return oauthCfg, nil
}

func authorize(ctx context.Context, oauthCfg *oauth2.Config, port int, logger *slog.Logger) (*oauth2.Token, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server, err := startCallbackServer(ctx, port, callbackHandler(state, codeChan, errChan), errChan, logger)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nOpening browser for Google authentication...\n")
	fmt.Printf("If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)
	if err := openBrowser(ctx, authURL); err != nil {
		logger.Warn("failed to open browser automatically", "error", err)
	}

	select {
	case code := <-codeChan:
		tok, err := oauthCfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		fmt.Println("Authentication successful!")
		return tok, nil
	case err := <-errChan:
		return nil, fmt.Errorf("oauth callback error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(serverTimeout):
		return nil, fmt.Errorf("oauth flow timed out after %v", serverTimeout)
	}
}

// callbackHandler receives the provider redirect and forwards the
// authorization code, or the reason there is none.
func callbackHandler(expectedState string, codeChan chan<- string, errChan chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != expectedState {
			errChan <- errors.New("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			errChan <- fmt.Errorf("%s: %s", errMsg, q.Get("error_description"))
			http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			errChan <- errors.New("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>parcelas</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>✓ Autenticação concluída</h1>
<p>Você já pode fechar esta janela e voltar ao terminal.</p>
</body>
</html>`)
		codeChan <- code
	}
}

func startCallbackServer(ctx context.Context, port int, handler http.Handler, errChan chan<- error, logger *slog.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle(callbackPath, handler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", port, err)
	}

	go func() {
		logger.Debug("starting oauth callback server", "port", port)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback server error", "error", err)
			errChan <- err
		}
	}()

	return server, nil
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
