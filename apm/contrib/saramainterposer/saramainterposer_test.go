// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package saramainterposer

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansenhahn/terra-apm-agent-go/apm"
)

func TestWrapSyncProducerSpansEachSend(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	agent := apm.NewAgent(apm.Config{URL: "http://127.0.0.1:0", Name: "test"})
	apm.SetActiveAgent(agent)
	agent.BeginTransaction("process order", "messaging", "", "")
	defer agent.EndTransaction(apm.OutcomeSuccess, "200")

	broker := sarama.NewMockBroker(t, 1)
	defer broker.Close()
	broker.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetBroker(broker.Addr(), broker.BrokerID()).
			SetLeader("orders", 0, broker.BrokerID()),
		"ProduceRequest": sarama.NewMockProduceResponse(t).
			SetError("orders", 0, sarama.ErrNoError),
	})

	cfg := sarama.NewConfig()
	cfg.Version = sarama.MinVersion
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer([]string{broker.Addr()}, cfg)
	require.NoError(err)
	defer producer.Close()

	wrapped := WrapSyncProducer(producer)

	msg := &sarama.ProducerMessage{Topic: "orders", Value: sarama.StringEncoder("hello")}
	_, _, err = wrapped.SendMessage(msg)
	require.NoError(err)

	var traceparent string
	for _, h := range msg.Headers {
		if string(h.Key) == "traceparent" {
			traceparent = string(h.Value)
		}
	}
	assert.NotEmpty(traceparent)
}
