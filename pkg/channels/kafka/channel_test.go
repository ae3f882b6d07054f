package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/formflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092")

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, Brokers())
}

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, _, err := CreateChannel(nil, "formflow")

	require.ErrorIs(t, err, ErrNoBrokers)
}

func TestPartitionKey_UsesExecutionKey(t *testing.T) {
	t.Parallel()

	msg := message.NewMessage("msg-1", []byte("{}"))
	msg.Metadata.Set(events.EventMetadataKey, "exec-42")

	key, err := PartitionKey(events.Topic, msg)

	require.NoError(t, err)
	assert.Equal(t, "exec-42", key)
}
