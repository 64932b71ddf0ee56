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
	"time"

	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"

	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// TokenSource supplies a bearer token for an authenticated request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Authenticator acquires tokens from an identity provider.
type Authenticator interface {
	Acquire(ctx context.Context, credentials Credentials) (*Token, error)
}

// Observer records token acquisitions.
type Observer interface {
	ObserveToken(err error)
}

// Session holds the current token for a run.  It is used from a single
// goroutine, the token is only replaced on (re)authentication.
type Session struct {
	authenticator Authenticator
	credentials   *Credentials
	clock         clock.PassiveClock
	cache         *Cache
	observer      Observer
	token         *Token
}

// SessionOption customises a session.
type SessionOption func(*Session)

// WithClock replaces the wall clock used for expiry checks.
func WithClock(c clock.PassiveClock) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// WithCache shares a token cache between sessions.
func WithCache(c *Cache) SessionOption {
	return func(s *Session) {
		s.cache = c
	}
}

// WithObserver records every acquisition attempt.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observer = o
	}
}

// NewSession returns a session that logs in with the credentials on demand.
func NewSession(authenticator Authenticator, credentials Credentials, options ...SessionOption) *Session {
	s := &Session{
		authenticator: authenticator,
		credentials:   &credentials,
		clock:         clock.RealClock{},
	}

	for _, o := range options {
		o(s)
	}

	return s
}

// NewStaticSession returns a session around a pre-issued token that cannot
// be renewed.
func NewStaticSession(token string, options ...SessionOption) *Session {
	s := &Session{
		clock: clock.RealClock{},
	}

	for _, o := range options {
		o(s)
	}

	if token != "" {
		s.token = &Token{
			AccessToken: token,
		}

		if claims, err := DecodeClaims(token); err == nil && claims.ExpiresAt != nil {
			s.token.Claims = claims
			s.token.Expiry = claims.ExpiresAt.Time
		}
	}

	return s
}

// Authenticate always fetches a fresh token and makes it current.
func (s *Session) Authenticate(ctx context.Context) (*Token, error) {
	if s.authenticator == nil || s.credentials == nil {
		return nil, ecareerrors.ErrNoCredentials
	}

	token, err := s.authenticator.Acquire(ctx, *s.credentials)

	if s.observer != nil {
		s.observer.ObserveToken(err)
	}

	if err != nil {
		return nil, err
	}

	s.token = token

	if s.cache != nil {
		s.cache.Set(*s.credentials, token)
	}

	return token, nil
}

// Token returns a usable bearer token, renewing it first if it has expired
// or is unreadable.
func (s *Session) Token(ctx context.Context) (string, error) {
	now := s.clock.Now()

	if s.token != nil && !IsExpired(s.token.AccessToken, now) {
		return s.token.AccessToken, nil
	}

	if s.credentials == nil {
		if s.token != nil {
			return "", ecareerrors.ErrTokenExpired
		}

		return "", ecareerrors.ErrNoCredentials
	}

	if s.cache != nil {
		if token, ok := s.cache.Get(*s.credentials); ok {
			s.token = token

			return token.AccessToken, nil
		}
	}

	if s.token != nil {
		log.FromContext(ctx).Info("token expired, generating fresh token", "expiry", s.token.Expiry)
	}

	token, err := s.Authenticate(ctx)
	if err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// Current returns the token last obtained, which may be nil.
func (s *Session) Current() *Token {
	return s.token
}

// Expiry returns the decoded expiry of the current token.
func (s *Session) Expiry() time.Time {
	if s.token == nil {
		return time.Time{}
	}

	return s.token.Expiry
}
