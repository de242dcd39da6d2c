package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jhaldar/sprout/notifications/email"
	"github.com/jhaldar/sprout/storage/cache"
	"github.com/streadway/amqp"
)

// globalCount drives the round-robin assignment of producers to messages.
var globalCount int

// TierMessage announces that a child's period total has crossed a reward
// tier threshold. Id must be unique per (child, tier, period) so redelivered
// messages can be deduplicated.
type TierMessage struct {
	Id          string `json:"id"`
	To          string `json:"to"`
	ChildName   string `json:"child_name"`
	TierLabel   string `json:"tier_label"`
	TierMarker  string `json:"tier_marker"`
	Total       int    `json:"total"`
	PeriodLabel string `json:"period_label"`
}

// TierProducerFactory creates TierProducer instances.
type TierProducerFactory struct{}

// TierConsumerFactory creates TierConsumer instances. Cache deduplicates
// processed messages; Mailer sends the notification emails.
type TierConsumerFactory struct {
	Cache  cache.CacheInterface
	Mailer *email.Mailer
}

// TierProducer publishes tier messages to the AMQP queue.
type TierProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// TierConsumer reads tier messages off the AMQP queue, deduplicates them
// against the cache, and emails the parent.
type TierConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	cache   cache.CacheInterface
	mailer  *email.Mailer
}

// CreateProducer builds a TierProducer over the given connection, channel,
// and queue.
func (f *TierProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &TierProducer{conn: conn, channel: ch, queue: queue}, nil
}

// CreateConsumer builds a TierConsumer over the given connection, channel,
// and queue.
func (f *TierConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &TierConsumer{conn: conn, channel: ch, queue: queue, cache: f.Cache, mailer: f.Mailer}, nil
}

// Publish sends a message body to the queue.
func (tp *TierProducer) Publish(body []byte) error {
	err := tp.channel.Publish(
		"",            // exchange
		tp.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}
	return nil
}

// Consume reads tier messages from the queue until the context is cancelled.
// Each message is unmarshalled, checked against the cache, and either acked
// as already handled or turned into a notification email. Transient failures
// are nacked back onto the queue.
func (tc *TierConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := tc.channel.Consume(
		tc.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					return
				}

				message := &TierMessage{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal tier message: %v", err)
					d.Nack(false, true)
					continue
				}

				processed, err := tc.cache.Get(ctx, "tier_"+message.Id)
				if err != nil && !errors.Is(err, cache.ErrKeyNotFound) {
					log.Printf("error checking cache: %v", err)
					d.Nack(false, true)
					continue
				}

				if processed != nil {
					d.Ack(false)
					continue
				}

				if err := tc.mailer.SendTierEmail(message.To, message.ChildName, message.TierLabel, message.TierMarker, message.Total, message.PeriodLabel); err != nil {
					log.Printf("failed to send tier email: %v", err)
					d.Nack(false, true)
				} else {
					d.Ack(false)
					if err := tc.cache.Set(ctx, "tier_"+message.Id, true); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildTierQueue initializes the reward-tier notification queue with the
// requested numbers of producers and consumers.
func BuildTierQueue(rabbitMQURL string, numProducers, numConsumers int, dedupeCache cache.CacheInterface, mailer *email.Mailer) *Queue {
	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &TierProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &TierConsumerFactory{Cache: dedupeCache, Mailer: mailer}
	}

	return InitQueue(rabbitMQURL, "tierQueue", prodFactories, consFactories)
}

// ProcessTierMessage serializes a tier message and publishes it through one
// of the queue's producers, assigned round-robin.
func ProcessTierMessage(msg *TierMessage, q *Queue) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.New("failed to marshal tier message: " + err.Error())
	}

	producerCount := len(q.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	producer := q.Producers[globalCount%producerCount]
	globalCount++

	if err := producer.Publish(body); err != nil {
		return errors.New("failed to publish tier message: " + err.Error())
	}
	return nil
}

// TierPublisher adapts a Queue to the reporter's notifier interface.
type TierPublisher struct {
	Queue *Queue
}

// NotifyTier publishes one tier message.
func (p TierPublisher) NotifyTier(msg *TierMessage) error {
	return ProcessTierMessage(msg, p.Queue)
}
