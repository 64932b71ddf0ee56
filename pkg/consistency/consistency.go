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

// Package consistency waits for writes to become visible to reads.  The
// remote API gives no read-your-writes guarantee, so callers choose between a
// fixed pause, bounded polling of a condition, or not waiting at all.
package consistency

import (
	"context"
	"fmt"
	"time"

	"github.com/nscaledev/ecare-e2e/pkg/config"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Condition reports whether the awaited state has been reached.  An error
// aborts the wait.
type Condition func(ctx context.Context) (bool, error)

// Strategy waits for a condition.
type Strategy interface {
	// Wait blocks until the condition holds, the strategy gives up, or
	// the context is done.  Giving up is reported as an error matching
	// IsTimeout.
	Wait(ctx context.Context, condition Condition) error
	// String names the strategy for logs and reports.
	String() string
}

// IsTimeout reports whether the strategy gave up waiting.
func IsTimeout(err error) bool {
	return wait.Interrupted(err)
}

// Fixed sleeps for a set delay and does not look at the condition.  It is a
// heuristic, a delay long enough on one day may not be the next.
type Fixed struct {
	Delay time.Duration
	Clock clock.Clock
}

func (f *Fixed) String() string {
	return fmt.Sprintf("fixed(%s)", f.Delay)
}

func (f *Fixed) Wait(ctx context.Context, _ Condition) error {
	c := f.Clock
	if c == nil {
		c = clock.RealClock{}
	}

	log.FromContext(ctx).Info("waiting for changes to propagate", "delay", f.Delay)

	timer := c.NewTimer(f.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// Backoff polls the condition with exponential backoff.
type Backoff struct {
	Backoff wait.Backoff
}

func (b *Backoff) String() string {
	return fmt.Sprintf("backoff(%s x%g, %d steps)", b.Backoff.Duration, b.Backoff.Factor, b.Backoff.Steps)
}

func (b *Backoff) Wait(ctx context.Context, condition Condition) error {
	log := log.FromContext(ctx)

	attempt := 0

	err := wait.ExponentialBackoffWithContext(ctx, b.Backoff, func(ctx context.Context) (bool, error) {
		attempt++

		done, err := condition(ctx)
		if err != nil {
			return false, err
		}

		log.V(1).Info("polled condition", "attempt", attempt, "done", done)

		return done, nil
	})
	if err != nil {
		if IsTimeout(err) {
			log.Info("gave up waiting for changes to propagate", "attempts", attempt)
		}

		return err
	}

	return nil
}

// None does not wait.
type None struct{}

func (None) String() string {
	return "none"
}

func (None) Wait(context.Context, Condition) error {
	return nil
}

// BackoffFromOptions returns the polling schedule configured for the run.
func BackoffFromOptions(o *config.Options, steps int) wait.Backoff {
	return wait.Backoff{
		Duration: o.BackoffInitial,
		Factor:   o.BackoffFactor,
		Jitter:   0.1,
		Steps:    steps,
	}
}

// New returns the strategy configured for the run.
func New(o *config.Options) Strategy {
	switch o.ConsistencyStrategy {
	case config.ConsistencyBackoff:
		return &Backoff{
			Backoff: BackoffFromOptions(o, o.BackoffSteps),
		}
	case config.ConsistencyNone:
		return None{}
	case config.ConsistencyFixed:
		fallthrough
	default:
		return &Fixed{
			Delay: o.ConsistencyDelay,
		}
	}
}
