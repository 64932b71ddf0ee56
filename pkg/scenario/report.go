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

package scenario

import (
	"time"

	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	"github.com/nscaledev/ecare-e2e/pkg/resolver"
)

// Outcome is how a step ended.
type Outcome string

const (
	// Passed means the step did what was asked.
	Passed Outcome = "passed"
	// Degraded means the step ran but fell short in a tolerated way.
	Degraded Outcome = "degraded"
	// Skipped means a prerequisite was missing.
	Skipped Outcome = "skipped"
	// Failed means the scenario was aborted.
	Failed Outcome = "failed"
)

// Step names in execution order.
const (
	StepAuthenticate       = "authenticate"
	StepCreateProvider     = "createProvider"
	StepResolveProvider    = "resolveProvider"
	StepGetProvider        = "getProvider"
	StepSetAvailability    = "setAvailability"
	StepVerifyAvailability = "verifyAvailability"
	StepAwaitConsistency   = "awaitConsistency"
	StepCreatePatient      = "createPatient"
	StepResolvePatient     = "resolvePatient"
	StepGetPatient         = "getPatient"
	StepBookAppointment    = "bookAppointment"
)

// StepResult records one step.
type StepResult struct {
	Name     string
	Outcome  Outcome
	Reason   string
	Err      error
	Duration time.Duration
}

// Report is the result of a scenario run.
type Report struct {
	Started  time.Time
	Finished time.Time

	Provider *ecare.Provider
	Patient  *ecare.Patient

	ProviderID         string
	ProviderConfidence resolver.Confidence
	PatientID          string
	PatientConfidence  resolver.Confidence
	AppointmentID      string

	Steps []StepResult
}

// Step returns the named step, or nil if it did not run.
func (r *Report) Step(name string) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}

	return nil
}

// Failure returns the step that aborted the scenario, if any.
func (r *Report) Failure() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Outcome == Failed {
			return &r.Steps[i]
		}
	}

	return nil
}

// Shortfalls returns the steps that were skipped or degraded.
func (r *Report) Shortfalls() []StepResult {
	var steps []StepResult

	for _, step := range r.Steps {
		if step.Outcome == Skipped || step.Outcome == Degraded {
			steps = append(steps, step)
		}
	}

	return steps
}

// Succeeded reports whether the scenario ran to completion.
func (r *Report) Succeeded() bool {
	return r.Failure() == nil
}
