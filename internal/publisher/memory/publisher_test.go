package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "reports", map[string]string{"report_id": "r-1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "audit", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "reports", msgs[0].Topic)
	require.JSONEq(t, `{"report_id":"r-1"}`, string(msgs[0].Data))

	msgs[0].Topic = "modified"
	require.Equal(t, "reports", pub.Messages()[0].Topic)
}

func TestPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	_, err := New().Publish(context.Background(), "reports", make(chan int))
	require.Error(t, err)
	require.Empty(t, New().Messages())
}
