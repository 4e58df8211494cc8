// Package credentials provides valid access tokens for characters.
//
// Tokens are stored in storage and refreshed through the EVE SSO when needed.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/httptransport"
)

const (
	DefaultTokenURL  = "https://login.eveonline.com/v2/oauth/token"
	DefaultVerifyURL = "https://login.eveonline.com/oauth/verify"
)

// Tokens are refreshed when they become invalid within this duration.
const refreshMargin = 60 * time.Second

// Provider provides access tokens for characters.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	sfg        *singleflight.Group
	st         *storage.Storage
	verifyURL  string
}

type Params struct {
	ClientID     string
	ClientSecret string
	// HTTPClient for requests to the SSO. Uses a logging client when nil.
	HTTPClient *http.Client
	Storage    *storage.Storage
	TokenURL   string // uses DefaultTokenURL when empty
	VerifyURL  string // uses DefaultVerifyURL when empty
}

// New returns a new Provider.
func New(arg Params) *Provider {
	if arg.Storage == nil {
		panic("missing storage")
	}
	p := &Provider{
		httpClient: arg.HTTPClient,
		sfg:        new(singleflight.Group),
		st:         arg.Storage,
		verifyURL:  arg.VerifyURL,
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{
			Transport: httptransport.LoggedTransport{
				RedactedURLs: []string{"oauth/token"},
			},
		}
	}
	if p.verifyURL == "" {
		p.verifyURL = DefaultVerifyURL
	}
	tokenURL := arg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	p.config = &oauth2.Config{
		ClientID:     arg.ClientID,
		ClientSecret: arg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return p
}

// AccessToken returns a valid access token for a character.
// Tokens which are invalid or about to become invalid are refreshed automatically.
func (p *Provider) AccessToken(ctx context.Context, characterID int32) (string, error) {
	t, err := p.st.GetCharacterToken(ctx, characterID)
	if errors.Is(err, app.ErrNotFound) {
		return "", &app.AuthError{Endpoint: "token", Message: fmt.Sprintf("no token for character %d", characterID)}
	} else if err != nil {
		return "", err
	}
	if t.RemainsValid(refreshMargin) {
		return t.AccessToken, nil
	}
	slog.Debug("Need to refresh token", "characterID", characterID)
	t, err = p.Refresh(ctx, characterID)
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

// Refresh refreshes the token of a character with it's refresh token and returns the updated token.
func (p *Provider) Refresh(ctx context.Context, characterID int32) (*app.CharacterToken, error) {
	x, err, _ := p.sfg.Do(fmt.Sprintf("refresh-%d", characterID), func() (any, error) {
		t, err := p.st.GetCharacterToken(ctx, characterID)
		if err != nil {
			return nil, err
		}
		if t.RefreshToken == "" {
			return nil, &app.AuthError{Endpoint: "token", Message: "missing refresh token"}
		}
		ctx2 := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
		src := p.config.TokenSource(ctx2, &oauth2.Token{
			RefreshToken: t.RefreshToken,
			Expiry:       time.Now().Add(-time.Hour), // forces a refresh
		})
		tok, err := src.Token()
		if err != nil {
			return nil, convertTokenError(err)
		}
		t.AccessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			t.RefreshToken = tok.RefreshToken
		}
		t.ExpiresAt = tok.Expiry
		if tok.TokenType != "" {
			t.TokenType = tok.TokenType
		}
		if err := p.st.UpdateOrCreateCharacterToken(ctx, storage.UpdateOrCreateCharacterTokenParamsFromToken(t)); err != nil {
			return nil, err
		}
		slog.Info("Token refreshed", "characterID", characterID)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh token for character %d: %w", characterID, err)
	}
	return x.(*app.CharacterToken), nil
}

// VerifyResult is the information the SSO reports about a token.
type VerifyResult struct {
	CharacterID        int32     `json:"CharacterID"`
	CharacterName      string    `json:"CharacterName"`
	CharacterOwnerHash string    `json:"CharacterOwnerHash"`
	ExpiresOn          string    `json:"ExpiresOn"`
	Scopes             string    `json:"Scopes"`
	TokenType          string    `json:"TokenType"`
	VerifiedAt         time.Time `json:"-"`
}

// Verify verifies the current access token of a character with the SSO.
func (p *Provider) Verify(ctx context.Context, characterID int32) (*VerifyResult, error) {
	accessToken, err := p.AccessToken(ctx, characterID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.verifyURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &app.TransportError{Endpoint: "verify", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &app.TransportError{Endpoint: "verify", StatusCode: resp.StatusCode, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &app.AuthError{Endpoint: "verify", Code: resp.StatusCode, Message: string(body)}
	case resp.StatusCode >= 400:
		return nil, &app.TransportError{Endpoint: "verify", StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	var r VerifyResult
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, &app.TransportError{Endpoint: "verify", StatusCode: resp.StatusCode, Err: err}
	}
	if r.CharacterID != characterID {
		return nil, &app.AuthError{
			Endpoint: "verify",
			Message:  "token belongs to character " + strconv.Itoa(int(r.CharacterID)),
		}
	}
	r.VerifiedAt = time.Now().UTC()
	return &r, nil
}

// convertTokenError converts an error from refreshing a token into an application error.
func convertTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		code := retrieveErr.Response.StatusCode
		if code < 500 {
			return &app.AuthError{Endpoint: "token", Code: code, Message: retrieveErr.Error()}
		}
		return &app.TransportError{Endpoint: "token", StatusCode: code, Err: err}
	}
	return &app.TransportError{Endpoint: "token", Err: err}
}
