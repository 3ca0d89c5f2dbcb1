// Package natstest runs an embedded JetStream server for tests.
package natstest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/todoflow-labs/task-tracker/internal/dto"
	"github.com/todoflow-labs/task-tracker/internal/events"
)

// Start boots a JetStream server on a random port with the task event stream
// in place. Everything is torn down with the test.
func Start(t *testing.T) nats.JetStreamContext {
	t.Helper()

	opts := &server.Options{
		JetStream: true,
		StoreDir:  t.TempDir(),
		Port:      -1,
		NoLog:     true,
		NoSigs:    true,
	}
	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		t.Fatal("NATS server not ready in time")
	}
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := nc.JetStream()
	require.NoError(t, err)
	require.NoError(t, events.EnsureStream(js))

	return js
}

// Fetch pulls n events published on subject.
func Fetch(t *testing.T, js nats.JetStreamContext, subject string, n int) []dto.TaskEvent {
	t.Helper()

	sub, err := js.PullSubscribe(subject, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	msgs, err := sub.Fetch(n, nats.MaxWait(time.Second))
	require.NoError(t, err)
	require.Len(t, msgs, n)

	out := make([]dto.TaskEvent, 0, n)
	for _, m := range msgs {
		var evt dto.TaskEvent
		require.NoError(t, json.Unmarshal(m.Data, &evt))
		out = append(out, evt)
		_ = m.Ack()
	}
	return out
}

// Pending reports how many messages the stream holds on subject.
func Pending(t *testing.T, js nats.JetStreamContext, subject string) uint64 {
	t.Helper()

	info, err := js.StreamInfo(events.StreamName, &nats.StreamInfoRequest{SubjectsFilter: subject})
	require.NoError(t, err)
	return info.State.Subjects[subject]
}
