package viewport

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/models"
)

const defaultRefreshInterval = time.Second * 2

// Refresher reloads the claim list in the background, on a fixed interval
// and on request. Results are delivered through a channel that only holds
// the most recent list, so the UI thread never blocks and never applies an
// older list after a newer one.
type Refresher struct {
	// Loads the claims.
	Fetch func(ctx context.Context) ([]models.Claim, error)

	// The polling interval. Defaults to 2 seconds.
	Interval time.Duration

	once     sync.Once
	results  chan []models.Claim
	requests chan struct{}
}

func (r *Refresher) init() {
	r.once.Do(func() {
		r.results = make(chan []models.Claim, 1)
		r.requests = make(chan struct{}, 1)
	})
}

// Results returns the channel the loaded claim lists are delivered to.
func (r *Refresher) Results() <-chan []models.Claim {
	r.init()
	return r.results
}

// Request asks for a refresh as soon as possible. Requests made while one is
// pending are merged.
func (r *Refresher) Request() {
	r.init()

	select {
	case r.requests <- struct{}{}:
	default:
	}
}

// Run loads the claims right away, then on every tick and request until the
// context is canceled.
func (r *Refresher) Run(ctx context.Context) {
	r.init()

	interval := r.Interval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			r.refresh(ctx)

		case <-r.requests:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	claims, err := r.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logs.Warn(errors.New("refreshing claims failed").Wrap(err))
		}
		return
	}

	select {
	case <-r.results:
	default:
	}
	r.results <- claims
}
