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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// ExpiryBuffer is subtracted from a token's lifetime so it is renewed well
// before the server would start rejecting it.
const ExpiryBuffer = 300 * time.Second

// RealmAccess lists realm level roles granted to the subject.
type RealmAccess struct {
	Roles []string `json:"roles,omitempty"`
}

// Claims are the parts of an identity provider access token the harness
// cares about.
type Claims struct {
	jwt.RegisteredClaims

	PreferredUsername string      `json:"preferred_username,omitempty"`
	Name              string      `json:"name,omitempty"`
	AuthorizedParty   string      `json:"azp,omitempty"`
	RealmAccess       RealmAccess `json:"realm_access"`
}

// ErrMalformedToken is raised when a token is not three dot separated segments.
var ErrMalformedToken = errors.New("token is not a three segment JWT")

// DecodeClaims reads the claims segment of a token without verifying the
// signature.  The header is ignored entirely.  The result is only fit for
// bookkeeping, never for trust decisions.
func DecodeClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	data, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding token claims: %w", err)
	}

	claims := &Claims{}

	if err := json.Unmarshal(data, claims); err != nil {
		return nil, fmt.Errorf("decoding token claims: %w", err)
	}

	return claims, nil
}

// IsExpired reports whether the token should be considered unusable at the
// given time.  Anything that cannot be read is expired.
func IsExpired(token string, now time.Time) bool {
	claims, err := DecodeClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}

	return now.Add(ExpiryBuffer).After(claims.ExpiresAt.Time)
}

// TokenInfo is a human readable summary of a token.
type TokenInfo struct {
	User      string
	Issuer    string
	Client    string
	TokenID   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Remaining time.Duration
	Expired   bool
}

// Describe summarises a token's claims relative to now.
func Describe(token string, now time.Time) (*TokenInfo, error) {
	claims, err := DecodeClaims(token)
	if err != nil {
		return nil, err
	}

	info := &TokenInfo{
		User:    claims.PreferredUsername,
		Client:  claims.AuthorizedParty,
		Roles:   claims.RealmAccess.Roles,
		Expired: IsExpired(token, now),
	}

	if info.User == "" {
		info.User = claims.Name
	}

	if claims.Issuer != "" {
		// Issuers are realm URLs, the realm is the interesting bit.
		info.Issuer = claims.Issuer[strings.LastIndex(claims.Issuer, "/")+1:]
	}

	if len(claims.ID) > 8 {
		info.TokenID = claims.ID[:8] + "..."
	} else {
		info.TokenID = claims.ID
	}

	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}

	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Remaining = claims.ExpiresAt.Sub(now)
	}

	return info, nil
}

// KeysAndValues flattens the summary for structured logging.
func (i *TokenInfo) KeysAndValues() []any {
	return []any{
		"user", i.User,
		"issuer", i.Issuer,
		"client", i.Client,
		"tokenID", i.TokenID,
		"roles", strings.Join(i.Roles, ","),
		"issued", i.IssuedAt,
		"expires", i.ExpiresAt,
		"remaining", i.Remaining.Round(time.Second),
	}
}
