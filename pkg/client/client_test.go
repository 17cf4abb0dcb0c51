package client

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	if HasToken(path) {
		t.Fatal("HasToken reported a token before one was saved")
	}

	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := saveToken(path, want); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	if !HasToken(path) {
		t.Fatal("HasToken = false after save")
	}

	got, err := tokenFromFile(path)
	if err != nil {
		t.Fatalf("tokenFromFile: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("token = %+v, want %+v", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}
}

func TestHasTokenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if HasToken(path) {
		t.Error("HasToken accepted a corrupt file")
	}
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  bool
		status   int
	}{
		{name: "success", query: "?state=s1&code=abc", wantCode: "abc", status: http.StatusOK},
		{name: "state mismatch", query: "?state=other&code=abc", wantErr: true, status: http.StatusBadRequest},
		{name: "provider error", query: "?state=s1&error=access_denied", wantErr: true, status: http.StatusBadRequest},
		{name: "missing code", query: "?state=s1", wantErr: true, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeChan := make(chan string, 1)
			errChan := make(chan error, 1)
			h := callbackHandler("s1", codeChan, errChan)

			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, callbackPath+tt.query, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			select {
			case code := <-codeChan:
				if tt.wantErr || code != tt.wantCode {
					t.Errorf("code = %q, wantErr %v", code, tt.wantErr)
				}
			case err := <-errChan:
				if !tt.wantErr {
					t.Errorf("unexpected error: %v", err)
				}
			default:
				t.Error("handler reported neither a code nor an error")
			}
		})
	}
}

func TestNewMissingSecret(t *testing.T) {
	_, err := New(t.Context(), Config{SecretFile: filepath.Join(t.TempDir(), "missing.json")}, nil)
	if err == nil {
		t.Fatal("expected an error for a missing client secret")
	}
}
