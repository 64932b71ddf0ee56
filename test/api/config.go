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


//nolint:revive,staticcheck // dot imports are standard for Ginkgo/Gomega test code
package api

import (
	"fmt"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	"github.com/nscaledev/ecare-e2e/pkg/client"
	"github.com/nscaledev/ecare-e2e/pkg/config"
	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	"github.com/nscaledev/ecare-e2e/pkg/fixtures"
	"github.com/nscaledev/ecare-e2e/pkg/openapi"
	"github.com/nscaledev/ecare-e2e/pkg/testing/fakeapi"
)

// Harness is everything a test needs to talk to one environment.
type Harness struct {
	Config    *config.Config
	Session   *auth.Session
	API       *ecare.API
	Generator *fixtures.Generator

	// Fake is the in-process server, nil when running live.
	Fake *fakeapi.Server

	// Timeout and Polling bound Eventually assertions.
	Timeout time.Duration
	Polling time.Duration
}

// ginkgoCleanup runs server teardown with the current test's cleanup.
type ginkgoCleanup struct{}

func (ginkgoCleanup) Cleanup(f func()) {
	DeferCleanup(f)
}

// Live reports whether a live environment was asked for.
func Live() bool {
	if _, err := config.LoadEnvFile(); err != nil {
		GinkgoWriter.Printf("Ignoring unreadable .env file: %v\n", err)
	}

	return os.Getenv("TEST_ENV") != ""
}

// LoadTestConfig loads the live environment configuration.
func LoadTestConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		return nil, fmt.Errorf("loading test configuration: %w", err)
	}

	return cfg, nil
}

// NewHarness connects to the live environment when TEST_ENV is set, and
// otherwise starts a fake configured with options.  Call it from a
// BeforeEach so the fake is torn down with the test.
func NewHarness(options fakeapi.Options) *Harness {
	var (
		cfg  *config.Config
		fake *fakeapi.Server
	)

	timeout, polling := time.Second, 10*time.Millisecond

	if Live() {
		var err error

		cfg, err = LoadTestConfig()
		Expect(err).NotTo(HaveOccurred())

		timeout, polling = time.Minute, 2*time.Second
	} else {
		fake = fakeapi.New(ginkgoCleanup{}, options)
		cfg = fake.Config()
		// Exercise the documented shapes on every fake response.
		cfg.Options.ValidateResponses = true
	}

	session := auth.NewSession(auth.NewAcquirer(nil), auth.CredentialsFor(&cfg.Environment))

	clientOptions := []client.Option{
		client.WithTokenSource(session),
	}

	if cfg.Options.ValidateResponses {
		validator, err := openapi.NewValidator(cfg.Environment.APIPrefix)
		Expect(err).NotTo(HaveOccurred())

		clientOptions = append(clientOptions, client.WithValidator(validator))
	}

	GinkgoWriter.Printf("Using environment %s at %s\n", cfg.Environment.Name, cfg.Environment.APIBaseURL())

	return &Harness{
		Config:    cfg,
		Session:   session,
		API:       ecare.New(client.New(cfg, clientOptions...), cfg.Environment.APIPrefix),
		Generator: fixtures.New(cfg.Environment.TenantID),
		Fake:      fake,
		Timeout:   timeout,
		Polling:   polling,
	}
}

// RequireFake skips the current test when running live.
func (h *Harness) RequireFake() {
	if h.Fake == nil {
		Skip("needs the in-process fake API")
	}
}
