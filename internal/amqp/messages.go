package amqp

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fundledger/internal/events"
)

const contentType = "application/json"

// toPublishing wraps msg for the wire. The message kind is the routing key.
func toPublishing(msg events.Message) (string, amqp091.Publishing, error) {
	body, err := msg.ToJSON()
	if err != nil {
		return "", amqp091.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return string(msg.Kind), amqp091.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.ID,
		AppId:        msg.Source,
		Type:         string(msg.Kind),
		Timestamp:    ts,
		Body:         body,
	}, nil
}

// fromDelivery decodes a delivery body back into a message.
func fromDelivery(d amqp091.Delivery) (events.Message, error) {
	if d.ContentType != "" && d.ContentType != contentType {
		return events.Message{}, fmt.Errorf("unexpected content type %q", d.ContentType)
	}
	return events.FromJSON(d.Body)
}
