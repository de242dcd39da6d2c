package queue

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	bodies [][]byte
}

func (p *fakeProducer) Publish(body []byte) error {
	p.bodies = append(p.bodies, body)
	return nil
}

func TestProcessTierMessageRoundRobin(t *testing.T) {
	p1 := &fakeProducer{}
	p2 := &fakeProducer{}
	q := &Queue{Producers: []Producer{p1, p2}}

	for i := 0; i < 4; i++ {
		msg := &TierMessage{
			Id:          fmt.Sprintf("msg-%d", i),
			To:          "parent@example.com",
			ChildName:   "Maya",
			TierLabel:   "Bronze",
			Total:       42,
			PeriodLabel: "March 2024",
		}
		require.NoError(t, ProcessTierMessage(msg, q))
	}

	// With two producers the four messages split evenly, whatever the
	// round-robin counter's starting offset was.
	assert.Len(t, p1.bodies, 2)
	assert.Len(t, p2.bodies, 2)
}

func TestProcessTierMessagePreservesPayload(t *testing.T) {
	p := &fakeProducer{}
	q := &Queue{Producers: []Producer{p}}

	msg := &TierMessage{
		Id:          "profile_child_gold_March 2024",
		To:          "parent@example.com",
		ChildName:   "Maya",
		TierLabel:   "Gold",
		TierMarker:  "🥇",
		Total:       104,
		PeriodLabel: "March 2024",
	}
	require.NoError(t, ProcessTierMessage(msg, q))
	require.Len(t, p.bodies, 1)

	var decoded TierMessage
	require.NoError(t, json.Unmarshal(p.bodies[0], &decoded))
	assert.Equal(t, *msg, decoded)
}

func TestProcessTierMessageNoProducers(t *testing.T) {
	q := &Queue{}
	err := ProcessTierMessage(&TierMessage{Id: "msg-1"}, q)
	assert.Error(t, err)
}
