package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/chazu/fuelgeom/pkg/model"
)

// DefaultEvalTimeout is the hard limit for a single evaluation unless the
// engine is configured otherwise.
const DefaultEvalTimeout = 5 * time.Second

type evalResult struct {
	model  *model.Model
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch for at most timeout. Results
// whose generation is no longer current are discarded.
//
// On timeout the evaluating goroutine may still be running; the generation
// check discards its result when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	timeout time.Duration,
) (*model.Model, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return res.model, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
