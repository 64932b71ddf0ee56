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

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"

	testingclock "k8s.io/utils/clock/testing"
)

type countingAuthenticator struct {
	t      *testing.T
	clock  *testingclock.FakeClock
	ttl    time.Duration
	calls  int
	tokens []string
	err    error
}

func (a *countingAuthenticator) Acquire(_ context.Context, _ auth.Credentials) (*auth.Token, error) {
	a.calls++

	if a.err != nil {
		return nil, a.err
	}

	expiry := a.clock.Now().Add(a.ttl)
	access := mintToken(a.t, expiry)
	a.tokens = append(a.tokens, access)

	return &auth.Token{
		AccessToken: access,
		Expiry:      expiry.Truncate(time.Second),
	}, nil
}

func TestSessionRenewsExpiredToken(t *testing.T) {
	t.Parallel()

	clock := testingclock.NewFakeClock(now)
	authenticator := &countingAuthenticator{t: t, clock: clock, ttl: time.Hour}

	session := auth.NewSession(authenticator, auth.Credentials{Username: "a"}, auth.WithClock(clock))

	first, err := session.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, authenticator.calls)

	again, err := session.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, authenticator.calls)

	// Step into the expiry buffer.
	clock.Step(time.Hour - auth.ExpiryBuffer + time.Second)

	_, err = session.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, authenticator.calls)
	assert.Equal(t, authenticator.tokens[1], session.Current().AccessToken)
}

func TestSessionAuthenticateFailure(t *testing.T) {
	t.Parallel()

	clock := testingclock.NewFakeClock(now)
	authenticator := &countingAuthenticator{t: t, clock: clock, err: &ecareerrors.AuthenticationError{Status: 401}}

	session := auth.NewSession(authenticator, auth.Credentials{}, auth.WithClock(clock))

	_, err := session.Token(context.Background())

	var authErr *ecareerrors.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Nil(t, session.Current())
}

func TestStaticSession(t *testing.T) {
	t.Parallel()

	clock := testingclock.NewFakeClock(now)

	session := auth.NewStaticSession(mintToken(t, now.Add(time.Hour)), auth.WithClock(clock))

	_, err := session.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), session.Expiry())

	clock.Step(time.Hour)

	_, err = session.Token(context.Background())
	require.ErrorIs(t, err, ecareerrors.ErrTokenExpired)
}

func TestEmptySessionFailsFast(t *testing.T) {
	t.Parallel()

	_, err := auth.NewStaticSession("").Token(context.Background())
	require.ErrorIs(t, err, ecareerrors.ErrNoCredentials)

	_, err = auth.NewStaticSession("").Authenticate(context.Background())
	require.ErrorIs(t, err, ecareerrors.ErrNoCredentials)
}

func TestSessionSharesCache(t *testing.T) {
	t.Parallel()

	clock := testingclock.NewFakeClock(now)
	cache := auth.NewCache(clock)
	authenticator := &countingAuthenticator{t: t, clock: clock, ttl: time.Hour}
	credentials := auth.Credentials{TokenEndpoint: "http://idp", ClientID: "js-client", Username: "a"}

	first := auth.NewSession(authenticator, credentials, auth.WithClock(clock), auth.WithCache(cache))
	second := auth.NewSession(authenticator, credentials, auth.WithClock(clock), auth.WithCache(cache))

	a, err := first.Token(context.Background())
	require.NoError(t, err)

	b, err := second.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, authenticator.calls)
}

func TestCacheIgnoresShortLivedTokens(t *testing.T) {
	t.Parallel()

	clock := testingclock.NewFakeClock(now)
	cache := auth.NewCache(clock)
	credentials := auth.Credentials{Username: "a"}

	cache.Set(credentials, &auth.Token{AccessToken: mintToken(t, now.Add(time.Minute)), Expiry: now.Add(time.Minute)})

	_, ok := cache.Get(credentials)
	assert.False(t, ok)

	cache.Set(credentials, &auth.Token{AccessToken: "opaque"})

	_, ok = cache.Get(credentials)
	assert.False(t, ok)
}
