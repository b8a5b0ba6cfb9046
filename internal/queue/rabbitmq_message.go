package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message pairs a decoded Job with the delivery it arrived on, so the worker
// can ack or nack against the right channel.
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Channel     *amqp.Channel
}

// GetJob returns the decoded job payload.
func (m *Message) GetJob() *Job {
	return m.Job
}

// Ack marks the message as processed.
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack rejects the message; with requeue it returns to the queue, without it
// the message dead-letters.
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}
