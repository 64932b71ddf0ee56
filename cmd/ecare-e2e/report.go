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
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	"github.com/nscaledev/ecare-e2e/pkg/scenario"
)

type stepOutput struct {
	Name     string `json:"name"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
	Duration string `json:"duration"`
}

type reportOutput struct {
	Started            time.Time    `json:"started"`
	Finished           time.Time    `json:"finished"`
	Succeeded          bool         `json:"succeeded"`
	ProviderEmail      string       `json:"providerEmail,omitempty"`
	ProviderID         string       `json:"providerId,omitempty"`
	ProviderConfidence string       `json:"providerConfidence,omitempty"`
	PatientID          string       `json:"patientId,omitempty"`
	PatientConfidence  string       `json:"patientConfidence,omitempty"`
	AppointmentID      string       `json:"appointmentId,omitempty"`
	Steps              []stepOutput `json:"steps"`
}

func newReportOutput(report *scenario.Report) *reportOutput {
	out := &reportOutput{
		Started:            report.Started,
		Finished:           report.Finished,
		Succeeded:          report.Succeeded(),
		ProviderID:         report.ProviderID,
		ProviderConfidence: string(report.ProviderConfidence),
		PatientID:          report.PatientID,
		PatientConfidence:  string(report.PatientConfidence),
		AppointmentID:      report.AppointmentID,
		Steps:              make([]stepOutput, len(report.Steps)),
	}

	if report.Provider != nil {
		out.ProviderEmail = report.Provider.Email
	}

	for i, step := range report.Steps {
		out.Steps[i] = stepOutput{
			Name:     step.Name,
			Outcome:  string(step.Outcome),
			Reason:   step.Reason,
			Duration: step.Duration.Round(time.Millisecond).String(),
		}
	}

	return out
}

func printReport(w io.Writer, format string, report *scenario.Report) error {
	out := newReportOutput(report)

	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "STEP\tOUTCOME\tDURATION\tREASON")

	for _, step := range out.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", step.Name, step.Outcome, step.Duration, step.Reason)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "provider:    %s %s (%s)\n", out.ProviderEmail, out.ProviderID, out.ProviderConfidence)
	fmt.Fprintf(w, "patient:     %s (%s)\n", out.PatientID, out.PatientConfidence)
	fmt.Fprintf(w, "appointment: %s\n", out.AppointmentID)
	fmt.Fprintf(w, "succeeded:   %t (%d shortfalls)\n", out.Succeeded, len(report.Shortfalls()))

	return nil
}

func printTokenInfo(w io.Writer, info *auth.TokenInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "user:\t%s\n", info.User)
	fmt.Fprintf(tw, "realm:\t%s\n", info.Issuer)
	fmt.Fprintf(tw, "client:\t%s\n", info.Client)
	fmt.Fprintf(tw, "token ID:\t%s\n", info.TokenID)
	fmt.Fprintf(tw, "roles:\t%v\n", info.Roles)
	fmt.Fprintf(tw, "issued:\t%s\n", info.IssuedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "expires:\t%s\n", info.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "remaining:\t%s\n", info.Remaining.Round(time.Second))
	fmt.Fprintf(tw, "expired:\t%t\n", info.Expired)

	_ = tw.Flush()
}
