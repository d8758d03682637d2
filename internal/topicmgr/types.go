// Package topicmgr is the catalog of topics actwatch publishes derived events
// on. Topics are defined once, validated on registration and listed by the CLI
// and the stream.
package topicmgr

import "fmt"

// Topic describes one named channel of derived events.
type Topic interface {
	Name() string
	// Module is the first dotted segment of the name ("combat" for
	// "combat.state.in").
	Module() string
	Description() string
	Example() string
	Metadata() map[string]any
}

// TopicConfig holds what is needed to define a topic.
type TopicConfig struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Example     string         `json:"example"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TypedTopic is the Topic returned by Define.
type TypedTopic struct {
	name        string
	module      string
	description string
	example     string
	metadata    map[string]any
}

var _ Topic = (*TypedTopic)(nil)

func (t *TypedTopic) Name() string        { return t.name }
func (t *TypedTopic) Module() string      { return t.module }
func (t *TypedTopic) Description() string { return t.description }
func (t *TypedTopic) Example() string     { return t.example }
func (t *TypedTopic) String() string      { return t.name }

// Metadata returns a copy of the topic metadata.
func (t *TypedTopic) Metadata() map[string]any {
	result := make(map[string]any, len(t.metadata))
	for k, v := range t.metadata {
		result[k] = v
	}
	return result
}

// ErrorType classifies a TopicError.
type ErrorType string

const (
	ErrorTopicNotFound         ErrorType = "topic_not_found"
	ErrorDuplicateRegistration ErrorType = "duplicate_registration"
	ErrorValidationFailed      ErrorType = "validation_failed"
)

// TopicError is returned by registry and manager operations.
type TopicError struct {
	Type    ErrorType `json:"type"`
	Topic   string    `json:"topic"`
	Message string    `json:"message"`
	Cause   error     `json:"cause,omitempty"`
}

func (e *TopicError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TopicError) Unwrap() error { return e.Cause }
