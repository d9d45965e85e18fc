package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// ErrRenderRejected indicates the render service answered without success.
var ErrRenderRejected = errors.New("render request rejected")

type requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type renderReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NATSRenderer sends documents to a render service over NATS request/reply.
type NATSRenderer struct {
	conn    requester
	subject string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewNATSRenderer constructs a renderer publishing on subject.
func NewNATSRenderer(conn *nats.Conn, subject string, timeout time.Duration, logger zerolog.Logger) (*NATSRenderer, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection must not be nil")
	}
	return newNATSRenderer(conn, subject, timeout, logger), nil
}

func newNATSRenderer(conn requester, subject string, timeout time.Duration, logger zerolog.Logger) *NATSRenderer {
	if subject == "" {
		subject = "documents.render"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NATSRenderer{
		conn:    conn,
		subject: subject,
		timeout: timeout,
		logger:  logger.With().Str("component", "nats_renderer").Logger(),
	}
}

// Render sends the document and waits for an {"ok":true} reply.
func (r *NATSRenderer) Render(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := r.conn.RequestWithContext(ctx, r.subject, payload)
	if err != nil {
		r.logger.Error().Err(err).Str("subject", r.subject).Msg("render request failed")
		return fmt.Errorf("render request: %w", err)
	}

	var reply renderReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("decode render reply: %w", err)
	}
	if !reply.OK {
		r.logger.Warn().Str("subject", r.subject).Str("reason", reply.Error).Msg("render request rejected")
		if reply.Error != "" {
			return fmt.Errorf("%w: %s", ErrRenderRejected, reply.Error)
		}
		return ErrRenderRejected
	}

	r.logger.Debug().Str("type", doc.Type).Int("incidents", len(doc.Incidents)).Msg("document rendered")
	return nil
}
