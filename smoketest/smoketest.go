// Package smoketest checks a running server end to end by creating a claim,
// submitting a conflicting one and deleting the first.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/claims"
	"github.com/aukilabs/splatgrid/client"
	"github.com/aukilabs/splatgrid/grid"
	splathttp "github.com/aukilabs/splatgrid/http"
	"github.com/aukilabs/splatgrid/models"
	"github.com/segmentio/encoding/json"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultTimeout = time.Second * 10
	tokenTTL       = time.Minute
)

// User is the identity the smoke test claims cells with.
var User = models.User{ID: "smoke-test", Name: "Smoke Test"}

type Options struct {
	// The public endpoint of this server.
	Endpoint string

	// Mints a token for the smoke test user.
	MakeToken func(models.User, time.Duration) (string, error)

	// Receives the result of every run.
	SendResult func(context.Context, Results) error
}

// Request is the optional body of a smoke test request.
type Request struct {
	// The endpoint to test. Defaults to the server public endpoint.
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// Results describes a smoke test run.
type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Status          string  `json:"status"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			splathttp.Error(w, http.StatusInternalServerError, "reading body failed")
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				splathttp.Error(w, http.StatusBadRequest, "invalid request")
				return
			}
		}
		if req.Endpoint == "" {
			req.Endpoint = opts.Endpoint
		}

		go func() {
			defer func() {
				// Signals tests that the run is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, RunOptions{
				FromEndpoint: opts.Endpoint,
				ToEndpoint:   req.Endpoint,
				Timeout:      req.Timeout,
				MakeToken:    opts.MakeToken,
			})
			if err != nil {
				logs.Warn(err)
			}

			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	Timeout      time.Duration
	MakeToken    func(models.User, time.Duration) (string, error)
}

// Run runs the claim cycle against the given endpoint.
func Run(ctx context.Context, opts RunOptions) (Results, error) {
	res := Results{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
		Status:       StatusFailed,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := func() error {
		token, err := opts.MakeToken(User, tokenTTL)
		if err != nil {
			return errors.New("making token failed").Wrap(err)
		}

		c := client.New(opts.ToEndpoint, token)
		start := time.Now()

		cells := smokeCells(start)
		created, err := c.CreateClaim(ctx, claims.CreateRequest{
			Name:       "smoke test",
			CaptureRef: "smoke-test",
			Cells:      cells,
		})
		if err != nil {
			return errors.New("creating claim failed").Wrap(err)
		}
		res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000

		_, err = c.CreateClaim(ctx, claims.CreateRequest{
			Name:       "smoke test conflict",
			CaptureRef: "smoke-test",
			Cells:      cells[1:],
		})
		conflictErr := err
		if conflictErr == nil || !errors.IsType(conflictErr, models.ErrTypeCellOccupied) {
			conflictErr = errors.New("conflicting claim was not rejected").
				WithTag("claim_id", created.ID)
		} else {
			conflictErr = nil
		}

		if err := c.DeleteClaim(ctx, created.ID); err != nil {
			return errors.New("deleting claim failed").
				WithTag("claim_id", created.ID).
				Wrap(err)
		}
		return conflictErr
	}()

	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("to_endpoint", opts.ToEndpoint).
			Wrap(err)
	}

	res.Status = StatusSuccess
	logs.WithTag("to_endpoint", opts.ToEndpoint).
		WithTag("latency_ms", res.LatencyMilliSec).
		Info("smoke test succeeded")
	return res, nil
}

// smokeCells returns two adjacent cells far from the origin so runs do not
// collide with user claims.
func smokeCells(t time.Time) []grid.Cell {
	x := -1_000_000 - int(t.UnixNano()%1_000_000)
	return []grid.Cell{
		{X: x, Y: -1_000_000},
		{X: x + 1, Y: -1_000_000},
	}
}
