package viewport

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/models"
	"github.com/stretchr/testify/require"
)

func TestRefresher(t *testing.T) {
	logs.SetLogger(func(e logs.Entry) {})

	t.Run("loads right away", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		r := Refresher{
			Interval: time.Hour,
			Fetch: func(ctx context.Context) ([]models.Claim, error) {
				return []models.Claim{{ID: "a"}}, nil
			},
		}
		go r.Run(ctx)

		select {
		case claims := <-r.Results():
			require.Equal(t, "a", claims[0].ID)
		case <-time.After(time.Second * 2):
			t.Fatal("no claims delivered")
		}
	})

	t.Run("request triggers a refresh", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		r := Refresher{
			Interval: time.Hour,
			Fetch: func(ctx context.Context) ([]models.Claim, error) {
				n := calls.Add(1)
				return []models.Claim{{ID: string(rune('a' + n - 1))}}, nil
			},
		}
		go r.Run(ctx)

		require.Equal(t, "a", (<-r.Results())[0].ID)

		r.Request()
		select {
		case claims := <-r.Results():
			require.Equal(t, "b", claims[0].ID)
		case <-time.After(time.Second * 2):
			t.Fatal("no refresh after request")
		}
	})

	t.Run("only the latest result is kept", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		r := Refresher{
			Interval: time.Millisecond,
			Fetch: func(ctx context.Context) ([]models.Claim, error) {
				calls.Add(1)
				return nil, nil
			},
		}
		go r.Run(ctx)

		require.Eventually(t, func() bool {
			return calls.Load() > 5
		}, time.Second*2, time.Millisecond)
		require.LessOrEqual(t, len(r.Results()), 1)
	})

	t.Run("errors keep the previous list", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		r := Refresher{
			Interval: time.Hour,
			Fetch: func(ctx context.Context) ([]models.Claim, error) {
				calls.Add(1)
				return nil, errors.New("offline")
			},
		}
		go r.Run(ctx)

		require.Eventually(t, func() bool {
			return calls.Load() == 1
		}, time.Second*2, time.Millisecond)
		require.Empty(t, r.Results())
	})

	t.Run("requests are merged", func(t *testing.T) {
		var r Refresher
		r.Request()
		r.Request()
		require.Len(t, r.requests, 1)
	})
}
