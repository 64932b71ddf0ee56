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


package main

import (
	"context"
	"errors"
	goflag "flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	"github.com/nscaledev/ecare-e2e/pkg/client"
	"github.com/nscaledev/ecare-e2e/pkg/config"
	"github.com/nscaledev/ecare-e2e/pkg/consistency"
	"github.com/nscaledev/ecare-e2e/pkg/constants"
	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	"github.com/nscaledev/ecare-e2e/pkg/fixtures"
	"github.com/nscaledev/ecare-e2e/pkg/metrics"
	"github.com/nscaledev/ecare-e2e/pkg/openapi"
	"github.com/nscaledev/ecare-e2e/pkg/resolver"
	"github.com/nscaledev/ecare-e2e/pkg/scenario"

	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
)

var (
	errUsage = errors.New("usage")

	errTokenUnusable = errors.New("token unusable")
)

type flags struct {
	environment string
	file        string
	pushgateway string
	output      string
}

func (f *flags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&f.environment, "env", "", "Environment profile to run against, defaults to TEST_ENV or staging.")
	flags.StringVar(&f.file, "config", "", "Environments file overriding the built in profiles.")
	flags.StringVar(&f.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL to push run metrics to.")
	flags.StringVar(&f.output, "output", "text", "Report format, either text or json.")
}

// stack is everything wired together for one environment.
type stack struct {
	config   *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	session  *auth.Session
	api      *ecare.API
}

func newStack(f *flags) (*stack, error) {
	cfg, err := config.Load(config.LoadOptions{
		Environment: f.environment,
		File:        f.file,
	})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()

	m := metrics.New(registry)

	session := auth.NewSession(auth.NewAcquirer(nil), auth.CredentialsFor(&cfg.Environment),
		auth.WithCache(auth.NewCache(clock.RealClock{})),
		auth.WithObserver(m),
	)

	options := []client.Option{
		client.WithTokenSource(session),
		client.WithObserver(m),
	}

	if cfg.Options.ValidateResponses {
		validator, err := openapi.NewValidator(cfg.Environment.APIPrefix)
		if err != nil {
			return nil, err
		}

		options = append(options, client.WithValidator(validator))
	}

	s := &stack{
		config:   cfg,
		registry: registry,
		metrics:  m,
		session:  session,
		api:      ecare.New(client.New(cfg, options...), cfg.Environment.APIPrefix),
	}

	return s, nil
}

func (s *stack) push(ctx context.Context, f *flags) {
	if f.pushgateway == "" {
		return
	}

	grouping := map[string]string{
		"environment": s.config.Environment.Name,
	}

	if err := metrics.Push(ctx, f.pushgateway, constants.Application, s.registry, grouping); err != nil {
		log.FromContext(ctx).Error(err, "metrics push failed", "url", f.pushgateway)
	}
}

func runScenario(ctx context.Context, f *flags) error {
	s, err := newStack(f)
	if err != nil {
		return err
	}

	defer s.push(ctx, f)

	orchestrator := scenario.New(s.config, s.api, s.session,
		fixtures.New(s.config.Environment.TenantID),
		consistency.New(&s.config.Options),
		scenario.WithStepObserver(s.metrics),
	)

	report, err := orchestrator.Run(ctx)

	if printErr := printReport(os.Stdout, f.output, report); printErr != nil {
		return printErr
	}

	if err != nil {
		if status, body, ok := scenario.ErrorBody(err); ok {
			fmt.Fprintf(os.Stderr, "server responded %d: %s\n", status, body)
		}

		return err
	}

	return nil
}

func runAuth(ctx context.Context, f *flags) error {
	s, err := newStack(f)
	if err != nil {
		return err
	}

	defer s.push(ctx, f)

	fmt.Fprintf(os.Stdout, "token endpoint: %s\n", s.config.Environment.TokenEndpoint())

	if login := s.config.Environment.LoginURL(); login != "" {
		fmt.Fprintf(os.Stdout, "login page:     %s\n", login)
	}

	token, err := s.session.Authenticate(ctx)
	if err != nil {
		if status, body, ok := scenario.ErrorBody(err); ok {
			fmt.Fprintf(os.Stderr, "identity provider responded %d: %s\n", status, body)
		}

		return err
	}

	info, err := auth.Describe(token.AccessToken, clock.RealClock{}.Now())
	if err != nil {
		// Opaque tokens are still usable, there is just nothing to show.
		log.FromContext(ctx).Info("token claims unreadable", "error", err.Error())
	} else {
		printTokenInfo(os.Stdout, info)
	}

	status, err := s.api.VerifyToken(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "token verification: %s\n", status)

	if !status.Usable() {
		return fmt.Errorf("%w: %s", errTokenUnusable, status)
	}

	return nil
}

func runToken(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: token <jwt>", errUsage)
	}

	info, err := auth.Describe(args[0], clock.RealClock{}.Now())
	if err != nil {
		return err
	}

	printTokenInfo(os.Stdout, info)

	return nil
}

func runAvailability(ctx context.Context, f *flags) error {
	s, err := newStack(f)
	if err != nil {
		return err
	}

	defer s.push(ctx, f)

	log := log.FromContext(ctx)

	if _, err := s.session.Authenticate(ctx); err != nil {
		return err
	}

	generator := fixtures.New(s.config.Environment.TenantID)

	provider := generator.Provider()

	if _, err := s.api.CreateProvider(ctx, provider); err != nil {
		return err
	}

	poll := consistency.BackoffFromOptions(&s.config.Options, s.config.Options.ResolveSteps)

	reference := resolver.Providers(s.api.ListProviders, &poll).Resolve(ctx, resolver.ByEmail(provider.Email))
	if !reference.Resolved() {
		return reference.Err
	}

	if _, err := s.api.SetAvailability(ctx, generator.Availability(reference.ID)); err != nil {
		return err
	}

	strategy := consistency.New(&s.config.Options)

	attempts := 0

	err = strategy.Wait(ctx, func(ctx context.Context) (bool, error) {
		attempts++

		lookup, err := s.api.GetAvailability(ctx, reference.ID)
		if err != nil {
			return false, err
		}

		log.Info("availability read-back", "providerID", reference.ID, "attempt", attempts, "status", lookup.Status)

		return lookup.Status == ecare.LookupFound, nil
	})
	if err != nil {
		if consistency.IsTimeout(err) {
			fmt.Fprintf(os.Stdout, "availability for provider %s not readable after %d attempts (%s)\n", reference.ID, attempts, strategy)
		}

		return err
	}

	fmt.Fprintf(os.Stdout, "availability for provider %s (%s) confirmed via %s\n", reference.ID, reference.Confidence, strategy)

	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] run|auth|token <jwt>|availability\n\n", constants.Application)
	pflag.PrintDefaults()
}

func main() {
	var f flags

	f.AddFlags(pflag.CommandLine)

	zapOptions := zap.Options{}

	goflags := goflag.NewFlagSet("zap", goflag.ExitOnError)
	zapOptions.BindFlags(goflags)

	pflag.CommandLine.AddGoFlagSet(goflags)
	pflag.Usage = usage

	pflag.Parse()

	log.SetLogger(zap.New(zap.UseFlagOptions(&zapOptions)))

	logger := log.Log.WithName("init")
	logger.Info("harness starting", "version", constants.VersionString())

	ctx := log.IntoContext(signals.SetupSignalHandler(), log.Log)

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error

	switch args[0] {
	case "run":
		err = runScenario(ctx, &f)
	case "auth":
		err = runAuth(ctx, &f)
	case "token":
		err = runToken(ctx, args[1:])
	case "availability":
		err = runAvailability(ctx, &f)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
