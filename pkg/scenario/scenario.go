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

// Package scenario runs the end-to-end clinician management flow: log in,
// create a provider and give them availability, create a patient, then book
// an appointment between the two.  Steps that depend on identifiers the API
// would not give back are skipped rather than failed.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nscaledev/ecare-e2e/pkg/config"
	"github.com/nscaledev/ecare-e2e/pkg/consistency"
	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"
	"github.com/nscaledev/ecare-e2e/pkg/fixtures"
	"github.com/nscaledev/ecare-e2e/pkg/resolver"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Orchestrator runs scenarios.
type Orchestrator struct {
	api           API
	authenticator Authenticator
	generator     *fixtures.Generator
	strategy      consistency.Strategy
	poll          *wait.Backoff
	observer      StepObserver
	clock         clock.PassiveClock
}

// Option customises an orchestrator.
type Option func(*Orchestrator)

// WithStepObserver records each step's outcome.
func WithStepObserver(observer StepObserver) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// WithClock replaces the clock used for timings.
func WithClock(clock clock.PassiveClock) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithResolvePolling overrides how long entity resolution waits for an
// exact match, nil disables polling.
func WithResolvePolling(poll *wait.Backoff) Option {
	return func(o *Orchestrator) {
		o.poll = poll
	}
}

// New returns an orchestrator.
func New(cfg *config.Config, api API, authenticator Authenticator, generator *fixtures.Generator, strategy consistency.Strategy, options ...Option) *Orchestrator {
	poll := consistency.BackoffFromOptions(&cfg.Options, cfg.Options.ResolveSteps)

	o := &Orchestrator{
		api:           api,
		authenticator: authenticator,
		generator:     generator,
		strategy:      strategy,
		poll:          &poll,
		clock:         clock.RealClock{},
	}

	for _, option := range options {
		option(o)
	}

	return o
}

// run is the state of one scenario.
type run struct {
	*Orchestrator

	report *Report
}

func (r *run) record(ctx context.Context, name string, start time.Time, outcome Outcome, reason string, err error) {
	step := StepResult{
		Name:     name,
		Outcome:  outcome,
		Reason:   reason,
		Err:      err,
		Duration: r.clock.Since(start),
	}

	r.report.Steps = append(r.report.Steps, step)

	if r.observer != nil {
		r.observer.ObserveStep(name, string(outcome))
	}

	log := log.FromContext(ctx).WithValues("step", name, "outcome", outcome, "duration", step.Duration)

	switch outcome {
	case Failed:
		log.Error(err, "step failed", "reason", reason)
	case Passed:
		log.Info("step passed")
	case Degraded, Skipped:
		log.Info("step fell short", "reason", reason)
	}
}

func (r *run) skip(ctx context.Context, name, reason string) {
	r.record(ctx, name, r.clock.Now(), Skipped, reason, &ecareerrors.SkippedError{Step: name, Reason: reason})
}

func (r *run) fail(ctx context.Context, name string, start time.Time, err error) error {
	r.record(ctx, name, start, Failed, err.Error(), err)

	return fmt.Errorf("step %s: %w", name, err)
}

func reasonFor[T any](reference *resolver.Reference[T]) string {
	if reference.Err != nil {
		return reference.Err.Error()
	}

	return string(reference.Confidence)
}

// Run executes the scenario.  The report is always returned, the error is
// set only if a step failed.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	r := &run{
		Orchestrator: o,
		report: &Report{
			Started: o.clock.Now(),
		},
	}

	err := r.execute(ctx)

	r.report.Finished = o.clock.Now()

	log.FromContext(ctx).Info("scenario complete",
		"providerID", r.report.ProviderID,
		"patientID", r.report.PatientID,
		"appointmentID", r.report.AppointmentID,
		"shortfalls", len(r.report.Shortfalls()),
		"succeeded", err == nil,
	)

	return r.report, err
}

func (r *run) execute(ctx context.Context) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	if err := r.provider(ctx); err != nil {
		return err
	}

	if err := r.availability(ctx); err != nil {
		return err
	}

	if err := r.patient(ctx); err != nil {
		return err
	}

	return r.appointment(ctx)
}

func (r *run) authenticate(ctx context.Context) error {
	start := r.clock.Now()

	if _, err := r.authenticator.Authenticate(ctx); err != nil {
		return r.fail(ctx, StepAuthenticate, start, err)
	}

	r.record(ctx, StepAuthenticate, start, Passed, "", nil)

	return nil
}

func (r *run) provider(ctx context.Context) error {
	start := r.clock.Now()

	r.report.Provider = r.generator.Provider()

	if _, err := r.api.CreateProvider(ctx, r.report.Provider); err != nil {
		return r.fail(ctx, StepCreateProvider, start, err)
	}

	r.record(ctx, StepCreateProvider, start, Passed, "", nil)

	start = r.clock.Now()

	reference := resolver.Providers(r.api.ListProviders, r.poll).Resolve(ctx, resolver.ByEmail(r.report.Provider.Email))

	r.report.ProviderID = reference.ID
	r.report.ProviderConfidence = reference.Confidence

	if !reference.Verified() {
		r.record(ctx, StepResolveProvider, start, Degraded, reasonFor(&reference), reference.Err)
	} else {
		r.record(ctx, StepResolveProvider, start, Passed, "", nil)
	}

	if !reference.Resolved() {
		r.skip(ctx, StepGetProvider, "provider identifier unavailable")

		return nil
	}

	start = r.clock.Now()

	lookup, err := r.api.GetProvider(ctx, reference.ID)

	switch {
	case err != nil:
		r.record(ctx, StepGetProvider, start, Degraded, "provider read failed", err)
	case lookup.Status != ecare.LookupFound:
		r.record(ctx, StepGetProvider, start, Degraded, "provider not readable by identifier: "+string(lookup.Status), nil)
	default:
		r.record(ctx, StepGetProvider, start, Passed, "", nil)
	}

	return nil
}

func (r *run) availability(ctx context.Context) error {
	providerID := r.report.ProviderID

	if providerID == "" {
		for _, name := range []string{StepSetAvailability, StepVerifyAvailability, StepAwaitConsistency} {
			r.skip(ctx, name, "provider identifier unavailable")
		}

		return nil
	}

	start := r.clock.Now()

	if _, err := r.api.SetAvailability(ctx, r.generator.Availability(providerID)); err != nil {
		return r.fail(ctx, StepSetAvailability, start, err)
	}

	r.record(ctx, StepSetAvailability, start, Passed, "", nil)

	visible := func(ctx context.Context) (bool, error) {
		lookup, err := r.api.GetAvailability(ctx, providerID)
		if err != nil {
			return false, err
		}

		return lookup.Status == ecare.LookupFound, nil
	}

	start = r.clock.Now()

	found, err := visible(ctx)

	switch {
	case err != nil:
		r.record(ctx, StepVerifyAvailability, start, Degraded, "availability read-back failed", err)
	case !found:
		r.record(ctx, StepVerifyAvailability, start, Degraded, "availability not yet readable", nil)
	default:
		r.record(ctx, StepVerifyAvailability, start, Passed, "", nil)
	}

	start = r.clock.Now()

	// Read-back errors end polling but are already reported above.
	if err := r.strategy.Wait(ctx, visible); err != nil {
		if ctx.Err() != nil {
			return r.fail(ctx, StepAwaitConsistency, start, err)
		}

		r.record(ctx, StepAwaitConsistency, start, Degraded, r.strategy.String()+": availability not confirmed", err)

		return nil
	}

	r.record(ctx, StepAwaitConsistency, start, Passed, r.strategy.String(), nil)

	return nil
}

func (r *run) patient(ctx context.Context) error {
	start := r.clock.Now()

	r.report.Patient = r.generator.Patient()

	created, err := r.api.CreatePatient(ctx, r.report.Patient)
	if err != nil {
		return r.fail(ctx, StepCreatePatient, start, err)
	}

	r.record(ctx, StepCreatePatient, start, Passed, "", nil)

	start = r.clock.Now()

	if created.ID != "" {
		r.report.PatientID = created.ID
		r.report.PatientConfidence = resolver.Exact

		r.record(ctx, StepResolvePatient, start, Passed, "identifier returned on create", nil)
	} else {
		patient := r.report.Patient

		reference := resolver.Patients(r.api.ListPatients, r.poll).Resolve(ctx, resolver.ByNameAndBirthDate(patient.FirstName, patient.LastName, patient.BirthDate))

		r.report.PatientID = reference.ID
		r.report.PatientConfidence = reference.Confidence

		if !reference.Verified() {
			r.record(ctx, StepResolvePatient, start, Degraded, reasonFor(&reference), reference.Err)
		} else {
			r.record(ctx, StepResolvePatient, start, Passed, "", nil)
		}
	}

	if r.report.PatientID == "" {
		r.skip(ctx, StepGetPatient, "patient identifier unavailable")

		return nil
	}

	start = r.clock.Now()

	lookup, err := r.api.GetPatient(ctx, r.report.PatientID)

	switch {
	case err != nil:
		r.record(ctx, StepGetPatient, start, Degraded, "patient read failed", err)
	case lookup.Status != ecare.LookupFound:
		// The API answers 204 or 404 for patients it has just created.
		r.record(ctx, StepGetPatient, start, Degraded, "patient not readable by identifier: "+string(lookup.Status), nil)
	default:
		r.record(ctx, StepGetPatient, start, Passed, "", nil)
	}

	return nil
}

func (r *run) appointment(ctx context.Context) error {
	switch {
	case r.report.PatientID == "":
		r.skip(ctx, StepBookAppointment, "patient identifier unavailable")
		return nil
	case r.report.ProviderID == "":
		r.skip(ctx, StepBookAppointment, "provider identifier unavailable")
		return nil
	}

	start := r.clock.Now()

	booking, err := r.api.BookAppointment(ctx, r.generator.Appointment(r.report.ProviderID, r.report.PatientID))
	if err != nil {
		if ecareerrors.IsAvailabilityNotFound(err) {
			r.record(ctx, StepBookAppointment, start, Degraded, "provider availability not visible to booking", err)

			return nil
		}

		return r.fail(ctx, StepBookAppointment, start, err)
	}

	r.report.AppointmentID = booking.ID

	r.record(ctx, StepBookAppointment, start, Passed, "", nil)

	return nil
}

// ErrorBody returns the raw server response behind a step failure, if there
// was one.
func ErrorBody(err error) (int, string, bool) {
	var statusErr *ecareerrors.UnexpectedStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, statusErr.Body, true
	}

	var authErr *ecareerrors.AuthenticationError
	if errors.As(err, &authErr) && authErr.Status != 0 {
		return authErr.Status, authErr.Body, true
	}

	return 0, "", false
}
