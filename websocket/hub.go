package websocket

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/featureflag"
	"github.com/aukilabs/splatgrid/models"
)

const (
	subscriberChanSize = 16
)

// Hub fans out feed notices to its subscribers. Every published notice gets
// the next revision. Notices are dropped for subscribers that are not keeping
// up.
type Hub struct {
	FeatureFlags featureflag.FeatureFlag

	mutex       sync.Mutex
	revision    uint64
	ids         models.SequentialIDGenerator
	subscribers map[uint32]chan models.FeedNotice
}

// Publish broadcasts a notice of the given type to every subscriber.
func (h *Hub) Publish(noticeType, mapID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.revision++
	notice := models.FeedNotice{
		Type:     noticeType,
		MapID:    mapID,
		Revision: h.revision,
	}

	if h.FeatureFlags.IsSet(featureflag.FlagDisableFeedBroadcast) {
		return
	}

	for id, c := range h.subscribers {
		select {
		case c <- notice:
			instrumentFeedNotice(noticeType, true)

		default:
			instrumentFeedNotice(noticeType, false)
			logs.WithTag("subscriber_id", id).
				WithTag("notice_type", noticeType).
				WithTag("revision", notice.Revision).
				Debug("feed notice dropped")
		}
	}
}

// Revision returns the revision of the last published notice.
func (h *Hub) Revision() uint64 {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.revision
}

// Subscribe registers a subscriber. The returned channel receives the
// notices published until the subscriber is removed with Unsubscribe.
func (h *Hub) Subscribe() (uint32, <-chan models.FeedNotice) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.subscribers == nil {
		h.subscribers = make(map[uint32]chan models.FeedNotice)
	}

	id := h.ids.New()
	c := make(chan models.FeedNotice, subscriberChanSize)
	h.subscribers[id] = c
	return id, c
}

// Unsubscribe removes the given subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uint32) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	c, ok := h.subscribers[id]
	if !ok {
		return
	}

	delete(h.subscribers, id)
	close(c)
	h.ids.Reuse(id)
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.subscribers)
}
