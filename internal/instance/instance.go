package instance

import (
	"context"
	"strings"
)

// Attributes is the canonical attribute map of an entity. Keys are snake_case.
type Attributes map[string]any

// Instance is a tagged entity handed to the host runtime.
type Instance struct {
	Namespace  string     `json:"namespace"`
	EntityType string     `json:"entity_type"`
	Attributes Attributes `json:"attributes"`
}

// Make tags attrs with a namespace and entity type. A nil map becomes empty.
func Make(namespace, entityType string, attrs Attributes) Instance {
	if attrs == nil {
		attrs = Attributes{}
	}
	return Instance{
		Namespace:  strings.TrimSpace(namespace),
		EntityType: strings.TrimSpace(entityType),
		Attributes: attrs,
	}
}

// ID returns the "id" attribute as a string, or "" when absent.
func (i Instance) ID() string {
	return i.Attributes.String("id")
}

// String returns the attribute as a string. Non-string values are not converted.
func (a Attributes) String(key string) string {
	if a == nil {
		return ""
	}
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Subscriber receives polled instances. upsert is true for create-or-update events.
type Subscriber interface {
	OnSubscription(ctx context.Context, inst Instance, upsert bool) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, inst Instance, upsert bool) error

func (f SubscriberFunc) OnSubscription(ctx context.Context, inst Instance, upsert bool) error {
	return f(ctx, inst, upsert)
}
