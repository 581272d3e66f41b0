package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerValidation(t *testing.T) {
	_, err := NewProducer(ProducerConfig{Topic: "abm.engagement.events"})
	assert.Error(t, err)

	_, err = NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	producer, err := NewProducer(ProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "abm.engagement.events",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, producer.maxAttempts)
	assert.NoError(t, producer.Close())
}

func TestCloseNilProducer(t *testing.T) {
	var producer *Producer
	assert.NoError(t, producer.Close())
}
