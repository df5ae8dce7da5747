package service

import (
	"encoding/json"
	"log"

	"koboland/internal/model"
	"koboland/internal/util"
	"koboland/internal/websocket"

	amqp "github.com/rabbitmq/amqp091-go"
)

const reactionEventsQueue = "reaction_events"

// ReactionEvent is one committed counter change, published after the
// transaction so consumers only ever see durable state.
type ReactionEvent struct {
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Counters   model.Counters `json:"counters"`
}

// ReactionEventPublisher hands committed counter changes to RabbitMQ so
// fanout stays off the request path. When the broker is unavailable it
// degrades to a direct websocket broadcast.
type ReactionEventPublisher struct {
	rabbitMQ *util.RabbitMQClient
	wsHub    *websocket.Hub
}

func NewReactionEventPublisher(rabbitMQ *util.RabbitMQClient, wsHub *websocket.Hub) *ReactionEventPublisher {
	return &ReactionEventPublisher{
		rabbitMQ: rabbitMQ,
		wsHub:    wsHub,
	}
}

// PublishVoteUpdate publishes a committed counter change
func (p *ReactionEventPublisher) PublishVoteUpdate(targetType, targetID string, counters model.Counters) {
	event := ReactionEvent{
		TargetType: targetType,
		TargetID:   targetID,
		Counters:   counters,
	}

	if p.rabbitMQ != nil {
		body, err := json.Marshal(event)
		if err == nil {
			if err := p.rabbitMQ.Publish(reactionEventsQueue, body); err == nil {
				return
			} else {
				log.Printf("Failed to publish reaction event, falling back to direct broadcast: %v", err)
			}
		}
	}

	broadcastVoteUpdate(p.wsHub, event)
}

func broadcastVoteUpdate(hub *websocket.Hub, event ReactionEvent) {
	if hub == nil {
		return
	}
	hub.BroadcastVoteUpdate(event.TargetType, event.TargetID, map[string]interface{}{
		"target_type": event.TargetType,
		"target_id":   event.TargetID,
		"likes":       event.Counters.Likes,
		"dislikes":    event.Counters.Dislikes,
		"shares":      event.Counters.Shares,
	})
}

// ReactionEventWorker consumes reaction events from RabbitMQ and pushes
// them to connected websocket clients.
type ReactionEventWorker struct {
	rabbitMQ *util.RabbitMQClient
	wsHub    *websocket.Hub
	stopChan chan bool
}

func NewReactionEventWorker(rabbitMQ *util.RabbitMQClient, wsHub *websocket.Hub) *ReactionEventWorker {
	return &ReactionEventWorker{
		rabbitMQ: rabbitMQ,
		wsHub:    wsHub,
		stopChan: make(chan bool),
	}
}

// Start starts consuming reaction events
func (w *ReactionEventWorker) Start() error {
	if w.rabbitMQ == nil {
		return nil // RabbitMQ not available, worker will not start
	}

	channel := w.rabbitMQ.GetChannel()
	if channel == nil {
		return nil
	}

	queue, err := channel.QueueDeclare(reactionEventsQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	msgs, err := channel.Consume(queue.Name, "reaction_event_worker", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		log.Println("Reaction event worker started, consuming messages...")
		for {
			select {
			case <-w.stopChan:
				log.Println("Reaction event worker stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Println("Reaction event queue closed")
					return
				}
				if err := w.processMessage(msg); err != nil {
					log.Printf("Error processing reaction event: %v", err)
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

func (w *ReactionEventWorker) processMessage(msg amqp.Delivery) error {
	var event ReactionEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return err
	}
	broadcastVoteUpdate(w.wsHub, event)
	return nil
}

// Stop stops the worker
func (w *ReactionEventWorker) Stop() {
	close(w.stopChan)
}
