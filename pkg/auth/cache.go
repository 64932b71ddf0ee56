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
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"k8s.io/utils/clock"
)

// Cache keeps tokens for the life of the process so a suite of scenarios
// does not log in once per scenario.
type Cache struct {
	cache *cache.Cache
	clock clock.PassiveClock
}

// NewCache returns an empty token cache.
func NewCache(clock clock.PassiveClock) *Cache {
	return &Cache{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
		clock: clock,
	}
}

func cacheKey(credentials Credentials) string {
	return strings.Join([]string{credentials.TokenEndpoint, credentials.ClientID, credentials.Username}, "|")
}

// Get returns a cached token that is still usable.
func (c *Cache) Get(credentials Credentials) (*Token, bool) {
	key := cacheKey(credentials)

	value, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}

	token, ok := value.(*Token)
	if !ok || IsExpired(token.AccessToken, c.clock.Now()) {
		c.cache.Delete(key)
		return nil, false
	}

	return token, true
}

// Set records a token until it enters its expiry buffer.  Tokens without a
// readable expiry are not cached.
func (c *Cache) Set(credentials Credentials, token *Token) {
	if token.Expiry.IsZero() {
		return
	}

	ttl := token.Expiry.Sub(c.clock.Now()) - ExpiryBuffer
	if ttl <= 0 {
		return
	}

	c.cache.Set(cacheKey(credentials), token, ttl)
}

// Delete forgets any token for the credentials.
func (c *Cache) Delete(credentials Credentials) {
	c.cache.Delete(cacheKey(credentials))
}
