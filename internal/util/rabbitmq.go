package util

import (
	"context"
	"fmt"
	"time"

	"koboland/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQClient(cfg *config.Config) (*RabbitMQClient, error) {
	url := cfg.RabbitMQURL
	if url == "" {
		url = fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQUser, cfg.RabbitMQPassword, cfg.RabbitMQHost, cfg.RabbitMQPort)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
	}, nil
}

// GetChannel returns the underlying channel (for consumers)
func (r *RabbitMQClient) GetChannel() *amqp.Channel {
	if r == nil {
		return nil
	}
	return r.channel
}

// Publish sends a persistent JSON message to a queue via the default exchange
func (r *RabbitMQClient) Publish(queue string, body []byte) error {
	if r == nil || r.channel == nil {
		return fmt.Errorf("rabbitmq not connected")
	}

	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close closes the channel and connection
func (r *RabbitMQClient) Close() {
	if r == nil {
		return
	}
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
