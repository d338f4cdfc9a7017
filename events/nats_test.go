package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	p := NewNATSPublisherFromConn(nil, "")
	require.Equal(t, "credtrust.certificate.revoked", p.Subject(TypeCertificateRevoked))
	p = NewNATSPublisherFromConn(nil, "edu.")
	require.Equal(t, "edu.certificate.verified", p.Subject(TypeCertificateVerified))
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), New(TypeCertificateIssued, "EDU-1-AAAAA")))
	require.NoError(t, r.Publish(context.Background(), New(TypeCertificateRevoked, "EDU-1-AAAAA")))
	require.Len(t, r.Events(), 2)
	require.Len(t, r.OfType(TypeCertificateRevoked), 1)
}

func TestNATSPublisher(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("Skipping NATS test. Set NATS_URL environment variable")
	}
	p, err := NewNATSPublisher(url, "credtrust-test.")
	require.NoError(t, err)
	defer p.Close()

	received := make(chan *nats.Msg, 1)
	sub, err := p.Conn().ChanSubscribe(p.Subject(TypeCertificateIssued), received)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	event := New(TypeCertificateIssued, "EDU-1-AAAAA")
	require.NoError(t, p.Publish(context.Background(), event))

	select {
	case msg := <-received:
		var got Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		require.Equal(t, event.ID, got.ID)
		require.Equal(t, "EDU-1-AAAAA", got.CertificateID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}
