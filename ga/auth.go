package ga

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/analytics/v3"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

type AuthConfig struct {
	// JSON file with OAuth2 client details, as downloaded from the Google Cloud console.
	ClientSecretsFile string
	// File to persist the user's token in, so consent is only needed once.
	TokenFile string
}

// Prompt asks the user to visit authURL and grant access, and returns the authorization code they
// were given.
type Prompt func(authURL string) (code string, err error)

// TerminalPrompt prints the consent URL to out, and reads the authorization code as a line from in.
func TerminalPrompt(in io.Reader, out io.Writer) Prompt {
	return func(authURL string) (string, error) {
		fmt.Fprintf(out, "Go to the following link in your browser, then enter the code:\n%s\n", authURL)

		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", wrap.Error(err, "failed to read authorization code")
			}
			return "", errors.New("no authorization code entered")
		}

		code := strings.TrimSpace(scanner.Text())
		if code == "" {
			return "", errors.New("no authorization code entered")
		}
		return code, nil
	}
}

// NewAuthenticatedClient returns an HTTP client authorized for read-only access to the Analytics
// reporting API. A token persisted in config.TokenFile is reused if present. Otherwise, the user is
// taken through the consent flow with prompt, and the resulting token is persisted. Refreshed
// tokens are persisted as well.
func NewAuthenticatedClient(
	ctx context.Context,
	config AuthConfig,
	prompt Prompt,
) (*http.Client, error) {
	secrets, err := os.ReadFile(config.ClientSecretsFile)
	if err != nil {
		return nil, wrap.Errorf(err, "failed to read client secrets file '%s'", config.ClientSecretsFile)
	}

	oauthConfig, err := google.ConfigFromJSON(secrets, analytics.AnalyticsReadonlyScope)
	if err != nil {
		return nil, wrap.Errorf(err, "invalid client secrets file '%s'", config.ClientSecretsFile)
	}

	token, err := loadToken(config.TokenFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		log.Infof("No stored token found in '%s', starting authorization flow", config.TokenFile)
		if token, err = requestToken(ctx, oauthConfig, prompt); err != nil {
			return nil, err
		}
		if err := saveToken(config.TokenFile, token); err != nil {
			return nil, err
		}
	}

	tokenSource := &persistingTokenSource{
		base:  oauthConfig.TokenSource(ctx, token),
		path:  config.TokenFile,
		saved: token,
	}
	return oauth2.NewClient(ctx, tokenSource), nil
}

func requestToken(
	ctx context.Context,
	oauthConfig *oauth2.Config,
	prompt Prompt,
) (*oauth2.Token, error) {
	if prompt == nil {
		return nil, errors.New("authorization required, but no prompt was given")
	}

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := prompt(authURL)
	if err != nil {
		return nil, wrap.Error(err, "authorization prompt failed")
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, wrap.Error(err, "failed to exchange authorization code for token")
	}
	return token, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var token oauth2.Token
	if err := json.NewDecoder(file).Decode(&token); err != nil {
		return nil, wrap.Errorf(err, "failed to parse token file '%s'", path)
	}
	return &token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return wrap.Errorf(err, "failed to open token file '%s' for writing", path)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(token); err != nil {
		return wrap.Errorf(err, "failed to write token file '%s'", path)
	}
	return nil
}

// persistingTokenSource saves the token to disk whenever the underlying source refreshes it.
type persistingTokenSource struct {
	base  oauth2.TokenSource
	path  string
	lock  sync.Mutex
	saved *oauth2.Token
}

func (source *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := source.base.Token()
	if err != nil {
		return nil, err
	}

	source.lock.Lock()
	defer source.lock.Unlock()

	if source.saved == nil || token.AccessToken != source.saved.AccessToken {
		if err := saveToken(source.path, token); err != nil {
			log.ErrorCause(err, "Failed to persist refreshed token")
		} else {
			source.saved = token
		}
	}

	return token, nil
}
