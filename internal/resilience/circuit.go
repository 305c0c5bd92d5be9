package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker is
// open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe call.
	ResetTimeout time.Duration
}

// Breaker is a minimal circuit breaker: closed while calls succeed, open
// after FailureThreshold consecutive failures, and half-open (one probe
// allowed) once ResetTimeout has elapsed.
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	failures    int
	openedAt    time.Time
	open        bool
	nowFunc     func() time.Time
}

// NewBreaker creates a breaker with the given config, applying defaults for
// zero values.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, nowFunc: time.Now}
}

// Allow reports whether a call may proceed. In the open state it returns
// ErrCircuitOpen until ResetTimeout has elapsed, then lets a probe through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.nowFunc().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return nil // probe
	}
	return ErrCircuitOpen
}

// Record feeds a call outcome back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.open = false
		return
	}

	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.open = true
		b.openedAt = b.nowFunc()
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	return b.Allow() != nil
}
