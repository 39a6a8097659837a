package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

func TestProducerConfig_ValidIdempotentSetup(t *testing.T) {
	req := require.New(t)

	cfg := producerConfig(nil)
	req.Equal(sarama.WaitForAll, cfg.Producer.RequiredAcks)
	req.True(cfg.Producer.Idempotent)
	req.True(cfg.Producer.Return.Successes)
	req.Equal(1, cfg.Net.MaxOpenRequests)

	// Sarama rejects idempotent producers with more than one in-flight
	// request; the assembled config must pass its own validation.
	req.NoError(cfg.Validate())
}

func TestProducerConfig_NormalizesCallerConfig(t *testing.T) {
	req := require.New(t)

	custom := sarama.NewConfig()
	custom.Net.MaxOpenRequests = 5

	cfg := producerConfig(custom)
	req.Equal(1, cfg.Net.MaxOpenRequests)
	req.NoError(cfg.Validate())
}
