package websocket

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/splatgrid/models"
	"golang.org/x/net/websocket"
)

// Sender sends a notice to the connected client and returns the number of
// bytes written.
type Sender func(models.FeedNotice) (int, error)

// Receiver reads a frame sent by the client and returns its size. Clients are
// not expected to send anything meaningful, the receiver only detects
// disconnections.
type Receiver func() (int, error)

// Handler represents a feed connection handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// The notices to forward to the client.
	Notices() <-chan models.FeedNotice

	// Returns the notice sent to the client right after it connected.
	Hello() models.FeedNotice

	// Creates a message receiver used to detect disconnections.
	Receiver() Receiver

	// Creates a message sender used to forward notices.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// Returns the client id.
	GetClientID() string
}

// Handle forwards the notices of the given handler to the connection until
// the client disconnects or the context is canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The feed handler.
	Handler Handler

	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 4)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	h.sender = h.Handler.Sender()
	h.receiver = h.Handler.Receiver()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	if _, err := h.sender(h.Handler.Hello()); err != nil {
		h.disconnect(errors.New("sending hello failed").Wrap(err))
	}

	notices := h.Handler.Notices()

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case notice, ok := <-notices:
			if !ok {
				h.disconnect(errors.New("feed closed"))
				notices = nil
				continue
			}

			if _, err := h.sender(notice); err != nil {
				h.disconnect(errors.New("sending notice failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			cancel()
		}
	}

	wg.Wait()
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			if _, err := h.receiver(); err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}
