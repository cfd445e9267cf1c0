package websocket

import (
	"fmt"

	"github.com/aukilabs/splatgrid/models"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// FeedHandler is the handler that subscribes a connection to a hub.
type FeedHandler struct {
	Hub *Hub

	conn         *websocket.Conn
	clientID     string
	subscriberID uint32
	notices      <-chan models.FeedNotice
	closed       bool
}

func (h *FeedHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
	h.subscriberID, h.notices = h.Hub.Subscribe()
	h.clientID = fmt.Sprintf("feed-%d", h.subscriberID)

	if u, ok := models.UserFromContext(conn.Request().Context()); ok {
		h.clientID = u.ID
	}
}

func (h *FeedHandler) HandleDisconnect(err error) {
	h.unsubscribe()
}

func (h *FeedHandler) Notices() <-chan models.FeedNotice {
	return h.notices
}

func (h *FeedHandler) Hello() models.FeedNotice {
	return models.FeedNotice{
		Type:     models.FeedHello,
		Revision: h.Hub.Revision(),
	}
}

func (h *FeedHandler) Receiver() Receiver {
	return func() (int, error) {
		var b []byte
		if err := websocket.Message.Receive(h.conn, &b); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

func (h *FeedHandler) Sender() Sender {
	return func(notice models.FeedNotice) (int, error) {
		b, err := json.Marshal(notice)
		if err != nil {
			return 0, err
		}

		if err := websocket.Message.Send(h.conn, string(b)); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

func (h *FeedHandler) Close() {
	h.unsubscribe()
}

func (h *FeedHandler) GetClientID() string {
	return h.clientID
}

func (h *FeedHandler) unsubscribe() {
	if h.closed || h.notices == nil {
		return
	}

	h.closed = true
	h.Hub.Unsubscribe(h.subscriberID)
}
