package websocket

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/featureflag"
	"github.com/aukilabs/splatgrid/models"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	logs.SetLogger(func(e logs.Entry) {})

	t.Run("publish bumps the revision", func(t *testing.T) {
		var h Hub
		require.Zero(t, h.Revision())

		h.Publish(models.FeedClaimsChanged, "")
		h.Publish(models.FeedCellsChanged, "starter-town")
		require.Equal(t, uint64(2), h.Revision())
	})

	t.Run("subscribers receive notices in order", func(t *testing.T) {
		var h Hub
		id, c := h.Subscribe()
		defer h.Unsubscribe(id)

		h.Publish(models.FeedClaimsChanged, "")
		h.Publish(models.FeedCellsChanged, "starter-town")

		require.Equal(t, models.FeedNotice{
			Type:     models.FeedClaimsChanged,
			Revision: 1,
		}, <-c)
		require.Equal(t, models.FeedNotice{
			Type:     models.FeedCellsChanged,
			MapID:    "starter-town",
			Revision: 2,
		}, <-c)
	})

	t.Run("slow subscriber drops notices", func(t *testing.T) {
		var h Hub
		id, c := h.Subscribe()
		defer h.Unsubscribe(id)

		for i := 0; i < subscriberChanSize+5; i++ {
			h.Publish(models.FeedClaimsChanged, "")
		}

		require.Len(t, c, subscriberChanSize)
		require.Equal(t, uint64(subscriberChanSize+5), h.Revision())
	})

	t.Run("unsubscribe closes the channel", func(t *testing.T) {
		var h Hub
		id, c := h.Subscribe()
		require.Equal(t, 1, h.Len())

		h.Unsubscribe(id)
		require.Zero(t, h.Len())

		_, ok := <-c
		require.False(t, ok)

		h.Unsubscribe(id)
	})

	t.Run("subscriber ids are reused", func(t *testing.T) {
		var h Hub
		id, _ := h.Subscribe()
		h.Unsubscribe(id)

		id2, _ := h.Subscribe()
		require.Equal(t, id, id2)
	})

	t.Run("disabled broadcast still bumps the revision", func(t *testing.T) {
		h := Hub{
			FeatureFlags: featureflag.New([]string{string(featureflag.FlagDisableFeedBroadcast)}),
		}
		id, c := h.Subscribe()
		defer h.Unsubscribe(id)

		h.Publish(models.FeedClaimsChanged, "")
		require.Equal(t, uint64(1), h.Revision())
		require.Empty(t, c)
	})
}
