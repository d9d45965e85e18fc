package render

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type requesterStub struct {
	subject string
	payload []byte
	reply   []byte
	err     error
}

func (r *requesterStub) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	r.subject = subj
	r.payload = data
	if r.err != nil {
		return nil, r.err
	}
	return &nats.Msg{Subject: subj, Data: r.reply}, nil
}

func sampleDocument() Document {
	return Document{
		Type:        DocumentIncidentReport,
		GeneratedAt: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
		Incidents: []IncidentSheet{{
			Number:      7,
			Category:    "BEHAVIOR",
			Status:      "OPEN",
			StudentName: "Ana",
			Tiers:       []TierSheet{{Tier: "tutor", Requested: true}},
		}},
	}
}

func TestNATSRendererSendsDocument(t *testing.T) {
	stub := &requesterStub{reply: []byte(`{"ok":true}`)}
	renderer := newNATSRenderer(stub, "school.render", time.Second, zerolog.Nop())

	require.NoError(t, renderer.Render(context.Background(), sampleDocument()))
	require.Equal(t, "school.render", stub.subject)

	var sent Document
	require.NoError(t, json.Unmarshal(stub.payload, &sent))
	require.Equal(t, DocumentIncidentReport, sent.Type)
	require.Len(t, sent.Incidents, 1)
	require.Equal(t, uint(7), sent.Incidents[0].Number)
}

func TestNATSRendererRejectedReply(t *testing.T) {
	stub := &requesterStub{reply: []byte(`{"ok":false,"error":"template missing"}`)}
	renderer := newNATSRenderer(stub, "", 0, zerolog.Nop())

	err := renderer.Render(context.Background(), sampleDocument())
	require.ErrorIs(t, err, ErrRenderRejected)
	require.Contains(t, err.Error(), "template missing")
	require.Equal(t, "documents.render", stub.subject)
}

func TestNATSRendererTransportFailure(t *testing.T) {
	stub := &requesterStub{err: nats.ErrNoResponders}
	renderer := newNATSRenderer(stub, "school.render", time.Second, zerolog.Nop())

	err := renderer.Render(context.Background(), sampleDocument())
	require.True(t, errors.Is(err, nats.ErrNoResponders))
}

func TestNewNATSRendererRequiresConnection(t *testing.T) {
	_, err := NewNATSRenderer(nil, "school.render", time.Second, zerolog.Nop())
	require.Error(t, err)
}

func TestLogRendererSucceeds(t *testing.T) {
	require.NoError(t, NewLogRenderer(zerolog.Nop()).Render(context.Background(), sampleDocument()))
}
