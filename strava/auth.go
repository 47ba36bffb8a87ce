package strava

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

const (
	AuthURL     = "https://www.strava.com/oauth/authorize"
	TokenURL    = "https://www.strava.com/oauth/token"
	TokenFile   = "strava_token.json"
	RedirectURI = "http://127.0.0.1:8723/cb"
)

// Scopes needed to read private activities.
var Scopes = []string{"read", "activity:read_all"}

// OAuthConfig returns the oauth2 configuration for a Strava application.
// Strava expects the client credentials in the form body.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// DefaultTokenPath is ~/strava_token.json.
func DefaultTokenPath() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(usr.HomeDir, TokenFile), nil
}

func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t oauth2.Token
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func SaveToken(path string, t *oauth2.Token) error {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// TokenSource returns a refreshing token source. A token saved at path wins
// over seed; refreshed tokens are written back to path when it is set.
func TokenSource(ctx context.Context, cfg *oauth2.Config, path string, seed *oauth2.Token) (oauth2.TokenSource, error) {
	tok := seed
	if path != "" {
		if saved, err := LoadToken(path); err == nil {
			tok = saved
		}
	}
	if tok == nil || (tok.RefreshToken == "" && tok.AccessToken == "") {
		return nil, errors.New("strava: no token; set STRAVA_REFRESH_TOKEN or authorize first")
	}
	src := cfg.TokenSource(ctx, tok)
	if path == "" {
		return src, nil
	}
	return &savingSource{src: src, path: path, last: tok.AccessToken}, nil
}

type savingSource struct {
	src  oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken != s.last {
		if err := SaveToken(s.path, t); err != nil {
			return nil, err
		}
		s.last = t.AccessToken
	}
	return t, nil
}
