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


//nolint:testpackage,revive // test package in suites is standard for these tests
package suites

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	"github.com/nscaledev/ecare-e2e/pkg/client"
	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"
	"github.com/nscaledev/ecare-e2e/pkg/testing/fakeapi"
	"github.com/nscaledev/ecare-e2e/test/api"
)

// apiWithToken returns an API client that presents a fixed token.
func apiWithToken(token string) *ecare.API {
	session := auth.NewStaticSession(token)

	return ecare.New(client.New(harness.Config, client.WithTokenSource(session)), harness.Config.Environment.APIPrefix)
}

var _ = Describe("Authentication", func() {
	Context("When logging in with the configured user", func() {
		It("should issue a token describing that user", func() {
			token, err := harness.Session.Authenticate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(token.AccessToken).NotTo(BeEmpty())

			info, err := auth.Describe(token.AccessToken, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.User).To(Equal(harness.Config.Environment.Username))
			Expect(info.Expired).To(BeFalse())
			Expect(info.Remaining).To(BeNumerically(">", 0))

			GinkgoWriter.Printf("Token for %s expires in %s\n", info.User, info.Remaining)
		})

		It("should be accepted by the resource API", func() {
			status, err := harness.API.VerifyToken(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(ecare.TokenAccepted))
		})

		It("should reuse the token while it is fresh", func() {
			harness.RequireFake()

			_, err := harness.API.ListProviders(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = harness.API.ListPatients(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(harness.Fake.TokenRequests()).To(Equal(1))
		})
	})

	Context("When the credentials are wrong", func() {
		BeforeEach(func() {
			harness = api.NewHarness(fakeapi.Options{RejectCredentials: true})
			harness.RequireFake()
		})

		It("should report the identity provider's response", func() {
			_, err := harness.Session.Authenticate(ctx)
			Expect(err).To(HaveOccurred())

			var authErr *ecareerrors.AuthenticationError
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(authErr.Status).To(Equal(http.StatusUnauthorized))
			Expect(authErr.Body).To(ContainSubstring("invalid_grant"))
		})
	})

	Context("When presenting a token", func() {
		It("should refuse an expired token before sending anything", func() {
			harness.RequireFake()

			token, err := harness.Fake.IssueToken(-time.Minute)
			Expect(err).NotTo(HaveOccurred())

			_, err = apiWithToken(token).ListProviders(ctx)
			Expect(err).To(MatchError(ecareerrors.ErrTokenExpired))
			Expect(harness.Fake.Requests(http.MethodGet, harness.Config.Environment.APIPrefix+ecare.ProvidersPath)).To(BeZero())
		})

		It("should refuse a token close to expiry", func() {
			harness.RequireFake()

			token, err := harness.Fake.IssueToken(time.Minute)
			Expect(err).NotTo(HaveOccurred())

			_, err = apiWithToken(token).ListProviders(ctx)
			Expect(err).To(MatchError(ecareerrors.ErrTokenExpired))
		})

		It("should be told a forged token is rejected", func() {
			claims := jwt.RegisteredClaims{
				Subject:   "forger",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}

			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not the signing key"))
			Expect(err).NotTo(HaveOccurred())

			status, err := apiWithToken(token).VerifyToken(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(ecare.TokenRejected))
		})
	})
})
