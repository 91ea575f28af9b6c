// Package events carries committed-mutation notifications out of the core.
// Events are built from the change log of a committed transaction and handed
// to a Publisher; delivery is at-most-once and never affects the commit.
package events

//go:generate mockgen -source=events.go -destination=mocks/mocks.go -package=mocks Publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"occupancy/pkg/domain"
	"time"

	"github.com/google/uuid"
)

// Topic groups events by the part of the model they describe.
type Topic string

// Published topics.
const (
	TopicLinkChanged    Topic = "link.changed"
	TopicPersonChanged  Topic = "person.changed"
	TopicCatalogChanged Topic = "catalog.changed"
)

var topicOrder = []Topic{TopicLinkChanged, TopicPersonChanged, TopicCatalogChanged}

// TopicFor maps an entity type to the topic its changes are published on.
func TopicFor(entity domain.EntityType) Topic {
	switch entity {
	case domain.EntityLink:
		return TopicLinkChanged
	case domain.EntityPerson, domain.EntityVehicle:
		return TopicPersonChanged
	default:
		return TopicCatalogChanged
	}
}

// Ref identifies one record touched by a committed operation.
type Ref struct {
	Entity domain.EntityType `json:"entity"`
	Action domain.Action     `json:"action"`
	ID     string            `json:"id"`
}

// Event is a committed-mutation notification.
type Event struct {
	ID         string    `json:"id"`
	Topic      Topic     `json:"topic"`
	Operation  string    `json:"operation"`
	OccurredAt time.Time `json:"occurred_at"`
	Refs       []Ref     `json:"refs"`
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Handler receives events from the in-process bus.
type Handler func(ctx context.Context, evt Event)

// FromChanges groups the change log of one commit into at most one event per
// topic, in link, person, catalog order.
func FromChanges(operation string, at time.Time, changes []domain.Change) []Event {
	grouped := make(map[Topic][]Ref)
	for _, c := range changes {
		topic := TopicFor(c.Entity)
		grouped[topic] = append(grouped[topic], Ref{Entity: c.Entity, Action: c.Action, ID: c.EntityID()})
	}
	out := make([]Event, 0, len(grouped))
	for _, topic := range topicOrder {
		refs, ok := grouped[topic]
		if !ok {
			continue
		}
		out = append(out, Event{
			ID:         uuid.NewString(),
			Topic:      topic,
			Operation:  operation,
			OccurredAt: at.UTC(),
			Refs:       refs,
		})
	}
	return out
}

// Encode serializes an event for wire sinks.
func Encode(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", evt.ID, err)
	}
	return data, nil
}

// Decode parses an event produced by Encode.
func Decode(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return evt, nil
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }
