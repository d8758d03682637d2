package pubsub

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/nfrund/actwatch/internal/topicmgr"
)

// Event ties a topic name to its payload type and registers the topic with
// the default topic manager.
type Event[T any] struct {
	topic topicmgr.Topic
}

// NewEvent defines a typed topic. The payload's JSON field names are recorded
// in the topic metadata for listing.
func NewEvent[T any](name, description, example string) Event[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var fields []string
	if t.Kind() == reflect.Struct {
		fields = jsonFields(t)
	}

	topic := topicmgr.Define(topicmgr.TopicConfig{
		Name:        name,
		Description: description,
		Example:     example,
		Metadata: map[string]any{
			"payload_fields": fields,
			"type_name":      t.Name(),
		},
	})
	topicmgr.Default().MustRegister(topic)
	return Event[T]{topic: topic}
}

func jsonFields(t reflect.Type) []string {
	var fields []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			fields = append(fields, jsonFields(f.Type)...)
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		fields = append(fields, name)
	}
	return fields
}

// Name returns the topic name.
func (e Event[T]) Name() string { return e.topic.Name() }

// Topic returns the registered topic.
func (e Event[T]) Topic() topicmgr.Topic { return e.topic }

// Publish sends a typed payload. Metadata may be nil.
func Publish[T any](ctx context.Context, p Publisher, ev Event[T], payload T, metadata map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, Message{
		Topic:    ev.Name(),
		Payload:  data,
		Metadata: metadata,
	})
}

// Decode unmarshals a message published on ev.
func Decode[T any](ev Event[T], msg Message) (T, error) {
	var v T
	err := json.Unmarshal(msg.Payload, &v)
	return v, err
}
