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

// Package resolver finds entities the API created but did not identify.  It
// lists the collection and picks the record whose discriminating fields match
// what was sent, and says how sure it is of the answer.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"

	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Confidence is how much a resolved identifier can be trusted.
type Confidence string

const (
	// Exact means exactly one record matched.
	Exact Confidence = "exact"
	// Ambiguous means several records matched, the first was chosen.
	Ambiguous Confidence = "ambiguous"
	// Fallback means nothing matched and the newest record was chosen,
	// it may belong to a different entity.
	Fallback Confidence = "fallback"
	// Unresolved means no identifier could be chosen.
	Unresolved Confidence = "unresolved"
)

// Reference is the outcome of a resolution.
type Reference[T any] struct {
	// ID is empty when unresolved.
	ID         string
	Confidence Confidence
	// Record is the chosen record, nil when unresolved.
	Record *T
	// Err explains anything short of an exact match.
	Err error
}

// Resolved reports whether an identifier was chosen.
func (r *Reference[T]) Resolved() bool {
	return r.ID != ""
}

// Verified reports whether the identifier is known to be the right one.
func (r *Reference[T]) Verified() bool {
	return r.Confidence == Exact
}

// Lister returns the current contents of a collection.
type Lister[T any] func(ctx context.Context) ([]T, error)

// Matcher selects records that correspond to a submitted fixture.
type Matcher[T any] func(record *T) bool

// Identifier extracts a record's identifier.
type Identifier[T any] func(record *T) string

// Resolver locates created entities in a collection.
type Resolver[T any] struct {
	// Resource names the collection in logs and errors.
	Resource string
	List     Lister[T]
	ID       Identifier[T]
	// Poll, when set, retries the list until an exact match appears before
	// settling for a weaker answer.
	Poll *wait.Backoff
}

func (r *Resolver[T]) scan(ctx context.Context, match Matcher[T]) ([]T, []int, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	var matches []int

	for i := range records {
		if match(&records[i]) {
			matches = append(matches, i)
		}
	}

	return records, matches, nil
}

// Resolve finds the record matching the fixture.
//
//nolint:cyclop
func (r *Resolver[T]) Resolve(ctx context.Context, match Matcher[T]) Reference[T] {
	log := log.FromContext(ctx).WithValues("resource", r.Resource)

	var (
		records []T
		matches []int
		err     error
	)

	if r.Poll == nil {
		records, matches, err = r.scan(ctx, match)
	} else {
		attempt := 0

		pollErr := wait.ExponentialBackoffWithContext(ctx, *r.Poll, func(ctx context.Context) (bool, error) {
			attempt++

			records, matches, err = r.scan(ctx, match)
			if err != nil {
				log.V(1).Info("list failed, retrying", "attempt", attempt, "error", err.Error())

				return false, nil
			}

			return len(matches) > 0, nil
		})
		if pollErr != nil && !wait.Interrupted(pollErr) && err == nil {
			err = pollErr
		}
	}

	if err != nil {
		log.Info("could not list, identifier unavailable", "error", err.Error())

		return Reference[T]{
			Confidence: Unresolved,
			Err: &ecareerrors.ResolutionError{
				Kind:     ecareerrors.ResolutionFailed,
				Resource: r.Resource,
				Reason:   "list query failed",
				Err:      err,
			},
		}
	}

	if len(matches) > 0 {
		record := &records[matches[0]]
		id := r.ID(record)

		if len(matches) == 1 {
			log.Info("resolved identifier", "id", id)

			return Reference[T]{ID: id, Confidence: Exact, Record: record}
		}

		log.Info("several records match, using the first", "id", id, "matches", len(matches))

		return Reference[T]{
			ID:         id,
			Confidence: Ambiguous,
			Record:     record,
			Err: &ecareerrors.ResolutionError{
				Kind:     ecareerrors.ResolutionAmbiguous,
				Resource: r.Resource,
				Reason:   fmt.Sprintf("%d records match", len(matches)),
			},
		}
	}

	if len(records) > 0 {
		record := &records[0]
		id := r.ID(record)

		log.Info("no record matches, falling back to the newest", "id", id)

		return Reference[T]{
			ID:         id,
			Confidence: Fallback,
			Record:     record,
			Err: &ecareerrors.ResolutionError{
				Kind:     ecareerrors.ResolutionAmbiguous,
				Resource: r.Resource,
				Reason:   "no record matches, using the newest",
			},
		}
	}

	log.Info("collection is empty, identifier unavailable")

	return Reference[T]{
		Confidence: Unresolved,
		Err: &ecareerrors.ResolutionError{
			Kind:     ecareerrors.ResolutionFailed,
			Resource: r.Resource,
			Reason:   "no records listed",
		},
	}
}

// ProviderID extracts a provider's identifier.
func ProviderID(record *ecare.ProviderRecord) string {
	return record.UUID
}

// PatientID extracts a patient's identifier.
func PatientID(record *ecare.PatientRecord) string {
	return record.UUID
}

// ByEmail matches providers by email address.
func ByEmail(email string) Matcher[ecare.ProviderRecord] {
	return func(record *ecare.ProviderRecord) bool {
		return record.Email == email
	}
}

// sameDate compares birth dates.  The API may echo a full timestamp as a
// date, or the reverse, so unequal strings are compared as dates.
func sameDate(a, b string) bool {
	if a == b {
		return true
	}

	x, ok := parseDate(a)
	if !ok {
		return false
	}

	y, ok := parseDate(b)
	if !ok {
		return false
	}

	return x.Equal(y)
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()

			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// ByNameAndBirthDate matches patients by first name, last name and birth
// date.
func ByNameAndBirthDate(firstName, lastName, birthDate string) Matcher[ecare.PatientRecord] {
	return func(record *ecare.PatientRecord) bool {
		return record.FirstName == firstName && record.LastName == lastName && sameDate(record.BirthDate, birthDate)
	}
}

// Providers returns a resolver over the provider collection.
func Providers(lister Lister[ecare.ProviderRecord], poll *wait.Backoff) *Resolver[ecare.ProviderRecord] {
	return &Resolver[ecare.ProviderRecord]{
		Resource: "provider",
		List:     lister,
		ID:       ProviderID,
		Poll:     poll,
	}
}

// Patients returns a resolver over the patient collection.
func Patients(lister Lister[ecare.PatientRecord], poll *wait.Backoff) *Resolver[ecare.PatientRecord] {
	return &Resolver[ecare.PatientRecord]{
		Resource: "patient",
		List:     lister,
		ID:       PatientID,
		Poll:     poll,
	}
}
