package health

import (
	"context"
	"fmt"
	"os"

	"mercator-hq/keeper/pkg/resilience"
)

// Pinger is implemented by the lifecycle storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageCheck reports whether the database answers a ping.
func StorageCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("storage unreachable: %w", err)
		}
		return nil
	}
}

// DirectoryCheck reports whether path exists and is a directory. A missing
// directory is healthy when allowMissing is set, since cleanup skips
// storage roots that were never created.
func DirectoryCheck(path string, allowMissing bool) CheckFunc {
	return func(ctx context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) && allowMissing {
				return nil
			}
			return fmt.Errorf("cannot stat %q: %w", path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%q is not a directory", path)
		}
		return nil
	}
}

// BreakerStater exposes a circuit breaker's state.
type BreakerStater interface {
	State() resilience.State
}

// CircuitBreakerCheck fails while the breaker is open.
func CircuitBreakerCheck(b BreakerStater) CheckFunc {
	return func(ctx context.Context) error {
		if state := b.State(); state == resilience.StateOpen {
			return fmt.Errorf("circuit breaker is %s", state)
		}
		return nil
	}
}
