package websocket

import (
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/splatgrid/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel        = "error_type"
	noticeTypeLabel     = "notice_type"
	deliveredLabel      = "delivered"
	publicEndpointLabel = "public_endpoint"
)

var (
	wsConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "The number of connected feed clients.",
	}, []string{
		publicEndpointLabel,
	})

	wsSentMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_msgs",
		Help: "The number of notices sent to WebSocket connections.",
	}, []string{
		publicEndpointLabel,
		noticeTypeLabel,
	})

	wsSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_bytes",
		Help: "The number of bytes sent to WebSocket connections.",
	}, []string{
		publicEndpointLabel,
		noticeTypeLabel,
	})

	wsSendError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The errors that occured while sending a notice.",
	}, []string{
		publicEndpointLabel,
		errTypeLabel,
		noticeTypeLabel,
	})

	feedNotices = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_notices_total",
		Help: "The number of notices fanned out to subscribers.",
	}, []string{
		noticeTypeLabel,
		deliveredLabel,
	})
)

func instrumentFeedNotice(noticeType string, delivered bool) {
	feedNotices.With(prometheus.Labels{
		noticeTypeLabel: noticeType,
		deliveredLabel:  strconv.FormatBool(delivered),
	}).Inc()
}

// HandlerWithMetrics decorates the given handler with prometheus metrics.
func HandlerWithMetrics(h Handler, publicEndpoint string) Handler {
	return &handlerWithMetrics{
		Handler:        h,
		publicEndpoint: publicEndpoint,
	}
}

type handlerWithMetrics struct {
	Handler

	publicEndpoint string
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	wsConnectedClients.
		With(prometheus.Labels{publicEndpointLabel: h.publicEndpoint}).
		Inc()

	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	wsConnectedClients.
		With(prometheus.Labels{publicEndpointLabel: h.publicEndpoint}).
		Dec()

	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) Sender() Sender {
	sender := h.Handler.Sender()

	return func(notice models.FeedNotice) (int, error) {
		n, err := sender(notice)
		if err != nil {
			wsSendError.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					noticeTypeLabel:     notice.Type,
					errTypeLabel:        errors.Type(err),
				}).
				Inc()
		}

		if n != 0 {
			wsSentMsgs.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					noticeTypeLabel:     notice.Type,
				}).
				Inc()
			wsSentBytes.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					noticeTypeLabel:     notice.Type,
				}).
				Add(float64(n))
		}

		return n, err
	}
}
