package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Action does the work of a step. The returned value is stored as the entry's data.
type Action func(ctx context.Context) (any, error)

type Compensation struct {
	Name string
	Do   Action
}

type Step struct {
	Name         string
	Action       Action
	Compensation *Compensation // nil: nothing to undo
}

// Saga is one attempt: an id, where to log, and the ordered steps.
type Saga struct {
	ID    string
	Log   Log
	Steps []Step
	// Isolate runs fn so that an error leaves no partial writes behind
	// (for example under a savepoint). Optional.
	Isolate func(ctx context.Context, fn func(ctx context.Context) error) error
}

// StepError reports the forward step that failed and, if any, the first
// compensation that could not be applied.
type StepError struct {
	SagaID          string
	Step            string
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %s: %v (compensation: %v)", e.SagaID, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %s: %v", e.SagaID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Compensated reports whether every completed step was undone.
func (e *StepError) Compensated() bool { return e.CompensationErr == nil }

type Runner struct {
	tracer trace.Tracer
}

func NewRunner(tracer trace.Tracer) *Runner {
	if tracer == nil {
		tracer = otel.Tracer("saga")
	}
	return &Runner{tracer: tracer}
}

// Run executes the steps in order. When a step fails its failure is logged and
// the compensations of the already completed steps run in reverse order.
// Returns *StepError on step failure, or a plain error when the log itself is unusable.
func (r *Runner) Run(ctx context.Context, s Saga) error {
	ctx, span := r.tracer.Start(ctx, "saga.run", trace.WithAttributes(
		attribute.String("saga.id", s.ID),
		attribute.Int("saga.steps", len(s.Steps)),
	))
	defer span.End()

	done := make([]Step, 0, len(s.Steps))
	for _, st := range s.Steps {
		if err := r.runOne(ctx, s, st.Name, st.Action); err != nil {
			serr := &StepError{SagaID: s.ID, Step: st.Name, Err: err}
			if lerr := r.appendFailure(ctx, s, st.Name, err); lerr != nil {
				serr.CompensationErr = lerr
			}
			if cerr := r.compensate(ctx, s, done); cerr != nil && serr.CompensationErr == nil {
				serr.CompensationErr = cerr
			}
			span.RecordError(serr)
			span.SetStatus(codes.Error, st.Name)
			return serr
		}
		done = append(done, st)
	}
	return nil
}

func (r *Runner) compensate(ctx context.Context, s Saga, done []Step) error {
	var first error
	for i := len(done) - 1; i >= 0; i-- {
		c := done[i].Compensation
		if c == nil {
			continue
		}
		if err := r.runOne(ctx, s, c.Name, c.Do); err != nil {
			log.Printf("saga=%s compensation %s failed: %v", s.ID, c.Name, err)
			_ = r.appendFailure(ctx, s, c.Name, err)
			if first == nil {
				first = fmt.Errorf("%s: %w", c.Name, err)
			}
		}
	}
	return first
}

// runOne runs fn and appends its completed entry inside the same isolation scope.
func (r *Runner) runOne(ctx context.Context, s Saga, name string, fn Action) error {
	ctx, span := r.tracer.Start(ctx, "saga.step."+name, trace.WithAttributes(
		attribute.String("saga.id", s.ID),
		attribute.String("saga.step", name),
	))
	defer span.End()

	body := func(ctx context.Context) error {
		data, err := fn(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s data: %w", name, err)
		}
		_, err = s.Log.Append(ctx, Entry{SagaID: s.ID, Step: name, Status: StatusCompleted, Data: raw})
		return err
	}

	var err error
	if s.Isolate != nil {
		err = s.Isolate(ctx, body)
	} else {
		err = body(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Runner) appendFailure(ctx context.Context, s Saga, name string, cause error) error {
	raw, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if _, err := s.Log.Append(ctx, Entry{SagaID: s.ID, Step: name, Status: StatusFailed, Data: raw}); err != nil {
		return fmt.Errorf("log %s failure: %w", name, err)
	}
	return nil
}
