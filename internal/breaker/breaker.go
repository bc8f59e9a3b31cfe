package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen dikembalikan tanpa memanggil fungsi yang dibungkus.
var ErrOpen = errors.New("circuit breaker is open")

const (
	DefaultFailureThreshold = 3
	DefaultResetTimeout     = 30 * time.Second
	DefaultCallTimeout      = 5 * time.Second
)

// Snapshot is what Breaker.Snapshot exposes for status endpoints.
type Snapshot struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	FailureCount     int       `json:"failureCount"`
	LastFailureTime  time.Time `json:"lastFailureTime,omitempty"`
	FailureThreshold int       `json:"failureThreshold"`
	ResetTimeoutMs   int64     `json:"resetTimeoutMs"`
}

type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

func WithResetTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.resetTimeout = d
		}
	}
}

// WithCallTimeout bounds every call; 0 disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(b *Breaker) { b.callTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithStateChangeHook dipanggil di luar lock setiap kali state berubah.
func WithStateChangeHook(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// Breaker guards one remote dependency. Safe for concurrent use.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	callTimeout  time.Duration
	now          func() time.Time
	onChange     func(name string, from, to State)

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trialActive bool
	// generation naik di setiap perubahan state; hasil call dari generation lama diabaikan
	generation uint64
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:         name,
		threshold:    DefaultFailureThreshold,
		resetTimeout: DefaultResetTimeout,
		callTimeout:  DefaultCallTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:             b.name,
		State:            b.state,
		FailureCount:     b.failures,
		LastFailureTime:  b.lastFailure,
		FailureThreshold: b.threshold,
		ResetTimeoutMs:   b.resetTimeout.Milliseconds(),
	}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute runs fn through b. A panic inside fn is recorded as a failure and re-raised.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	gen, err := b.acquire()
	if err != nil {
		return zero, err
	}

	callCtx := ctx
	if b.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}

	done := false
	defer func() {
		if !done {
			b.record(gen, false)
		}
	}()
	out, err := fn(callCtx)
	if err == nil && callCtx.Err() != nil {
		// fn ignored the deadline; still count it
		err = fmt.Errorf("%s: %w", b.name, callCtx.Err())
	}
	done = true
	b.record(gen, err == nil)
	if err != nil {
		return zero, err
	}
	return out, nil
}

// acquire decides whether a call may proceed and performs the OPEN -> HALF_OPEN move.
// It returns the generation the call was admitted in.
func (b *Breaker) acquire() (uint64, error) {
	b.mu.Lock()
	var from State
	changed := false
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return 0, ErrOpen
		}
		from, changed = b.state, true
		b.setState(StateHalfOpen)
		b.trialActive = true
	case StateHalfOpen:
		if b.trialActive {
			b.mu.Unlock()
			return 0, ErrOpen
		}
		b.trialActive = true
	}
	gen := b.generation
	b.mu.Unlock()
	if changed {
		b.notify(from, StateHalfOpen)
	}
	return gen, nil
}

// record applies the outcome of a call admitted in generation gen.
// Outcomes of calls admitted before the last state change are dropped.
func (b *Breaker) record(gen uint64, success bool) {
	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	from := b.state
	if from == StateHalfOpen {
		b.trialActive = false
	}
	if success {
		b.failures = 0
		if from != StateClosed {
			b.setState(StateClosed)
		}
	} else {
		b.failures++
		b.lastFailure = b.now()
		if from == StateHalfOpen || b.failures >= b.threshold {
			b.setState(StateOpen)
		}
	}
	to := b.state
	b.mu.Unlock()
	if from != to {
		b.notify(from, to)
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) {
	b.state = to
	b.generation++
}

func (b *Breaker) notify(from, to State) {
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
