// Package notify publishes booking state changes to collaborators.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// NATS publishes each notice as JSON on a subject. The subject gets the
// booking status appended, e.g. events.bookings.booked.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS connects to the comma-separated server urls.
func NewNATS(urls, subject string, log zerolog.Logger) (*NATS, error) {
	servers := strings.Split(urls, ",")
	for i, s := range servers {
		servers[i] = strings.TrimSpace(s)
	}

	conn, err := nats.Connect(strings.Join(servers, ","),
		nats.Name("event-booking"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Warn().Err(err).Msg("nats async error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATS{conn: conn, subject: subject}, nil
}

// Subject returns the subject a notice with the given status is published on.
func (n *NATS) Subject(status model.BookingStatus) string {
	return n.subject + "." + string(status)
}

// Notify hands the notice to the client's outbound buffer and returns. The
// client flushes in the background and buffers while reconnecting, so a
// booking response never waits on the broker. Write errors surface through
// the async error handler.
func (n *NATS) Notify(_ context.Context, notice model.BookingNotice) error {
	blob, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	if err := n.conn.Publish(n.Subject(notice.Status), blob); err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// Log writes notices to the logger. It is used when no broker is configured.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) Notify(_ context.Context, notice model.BookingNotice) error {
	l.log.Info().
		Str("event_id", notice.EventID).
		Str("user_id", notice.UserID).
		Str("booking_id", notice.BookingID).
		Str("status", string(notice.Status)).
		Time("at", notice.At).
		Msg("booking notice")
	return nil
}
