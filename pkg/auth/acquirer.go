/*
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/nscaledev/ecare-e2e/pkg/config"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Credentials are what a password grant is made from.
type Credentials struct {
	TokenEndpoint string
	ClientID      string
	Username      string
	Password      string
	Scope         string
}

// CredentialsFor returns the credentials of an environment's test user.
func CredentialsFor(environment *config.Environment) Credentials {
	return Credentials{
		TokenEndpoint: environment.TokenEndpoint(),
		ClientID:      environment.ClientID,
		Username:      environment.Username,
		Password:      environment.Password,
		Scope:         environment.Scope,
	}
}

// Token is an access token and what could be learned from it.
type Token struct {
	// AccessToken is the opaque bearer credential.
	AccessToken string
	// ExpiresIn is the lifetime in seconds as reported by the server.
	ExpiresIn int
	// Expiry is the decoded exp claim, zero when the token is unreadable.
	Expiry time.Time
	// Claims are nil when the token is unreadable.
	Claims *Claims
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Acquirer exchanges credentials for tokens.  It never retries, that is a
// decision for the caller.
type Acquirer struct {
	client *http.Client
}

// NewAcquirer returns an acquirer using the given HTTP client, or the default
// client when nil.
func NewAcquirer(client *http.Client) *Acquirer {
	if client == nil {
		client = http.DefaultClient
	}

	return &Acquirer{
		client: client,
	}
}

// Acquire performs an OAuth2 password grant against the token endpoint.
func (a *Acquirer) Acquire(ctx context.Context, credentials Credentials) (*Token, error) {
	log := log.FromContext(ctx)

	scope := credentials.Scope
	if scope == "" {
		scope = "openid profile email"
	}

	form := url.Values{
		"grant_type": []string{"password"},
		"client_id":  []string{credentials.ClientID},
		"username":   []string{credentials.Username},
		"password":   []string{credentials.Password},
		"scope":      []string{scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, credentials.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	log.V(1).Info("requesting access token", "endpoint", credentials.TokenEndpoint, "user", credentials.Username)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &ecareerrors.AuthenticationError{Err: err}
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ecareerrors.AuthenticationError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ecareerrors.AuthenticationError{Status: resp.StatusCode, Body: string(body)}
	}

	var response tokenResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &ecareerrors.AuthenticationError{Status: resp.StatusCode, Body: string(body), Err: err}
	}

	if response.AccessToken == "" {
		return nil, &ecareerrors.AuthenticationError{Status: resp.StatusCode, Body: string(body), Err: ecareerrors.ErrMissingToken}
	}

	token := &Token{
		AccessToken: response.AccessToken,
		ExpiresIn:   response.ExpiresIn,
	}

	// Not being able to read the claims is tolerated here, the session will
	// treat the token as expired and renew it on next use.
	if claims, err := DecodeClaims(response.AccessToken); err == nil {
		token.Claims = claims

		if claims.ExpiresAt != nil {
			token.Expiry = claims.ExpiresAt.Time
		}
	} else {
		log.Info("access token claims unreadable", "error", err.Error())
	}

	log.Info("access token acquired", "user", credentials.Username, "expiry", token.Expiry)

	return token, nil
}
