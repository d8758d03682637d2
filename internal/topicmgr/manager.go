package topicmgr

import (
	"sort"
	"strings"
	"sync"
)

// Manager validates and registers topics.
type Manager struct {
	registry  *Registry
	validator *Validator
}

// NewManager creates a manager with an empty registry.
func NewManager() *Manager {
	return &Manager{registry: NewRegistry(), validator: NewValidator()}
}

// Define creates a topic from config. The module is derived from the name.
func Define(config TopicConfig) Topic {
	module, _, _ := strings.Cut(config.Name, ".")
	return &TypedTopic{
		name:        config.Name,
		module:      module,
		description: config.Description,
		example:     config.Example,
		metadata:    config.Metadata,
	}
}

// Register validates and adds a topic.
func (m *Manager) Register(topic Topic) error {
	if err := m.validator.ValidateDefinition(topic); err != nil {
		name := ""
		if topic != nil {
			name = topic.Name()
		}
		return &TopicError{
			Type:    ErrorValidationFailed,
			Topic:   name,
			Message: "topic validation failed",
			Cause:   err,
		}
	}
	return m.registry.Register(topic)
}

// MustRegister registers a topic and panics on failure. Meant for
// package-level topic definitions.
func (m *Manager) MustRegister(topic Topic) {
	if err := m.Register(topic); err != nil {
		panic(err)
	}
}

// Get retrieves a topic by name.
func (m *Manager) Get(name string) (Topic, bool) {
	return m.registry.Get(name)
}

// Lookup is Get returning a TopicError when the topic is unknown.
func (m *Manager) Lookup(name string) (Topic, error) {
	if t, ok := m.registry.Get(name); ok {
		return t, nil
	}
	return nil, &TopicError{Type: ErrorTopicNotFound, Topic: name, Message: "topic not found: " + name}
}

// List returns all topics sorted by name.
func (m *Manager) List() []Topic {
	return m.registry.List()
}

// ListByModule returns the topics whose first segment is module.
func (m *Manager) ListByModule(module string) []Topic {
	var topics []Topic
	for _, t := range m.registry.List() {
		if t.Module() == module {
			topics = append(topics, t)
		}
	}
	return topics
}

// ListModules returns the distinct modules, sorted.
func (m *Manager) ListModules() []string {
	seen := make(map[string]struct{})
	for _, t := range m.registry.List() {
		seen[t.Module()] = struct{}{}
	}
	modules := make([]string, 0, len(seen))
	for mod := range seen {
		modules = append(modules, mod)
	}
	sort.Strings(modules)
	return modules
}

// FindTopics returns the topics matching a wildcard pattern (see Match).
func (m *Manager) FindTopics(pattern string) []Topic {
	var topics []Topic
	for _, t := range m.registry.List() {
		if Match(pattern, t.Name()) {
			topics = append(topics, t)
		}
	}
	return topics
}

// ValidatePattern checks a subscription pattern.
func (m *Manager) ValidatePattern(pattern string) error {
	if err := m.validator.ValidatePattern(pattern); err != nil {
		return &TopicError{Type: ErrorValidationFailed, Topic: pattern, Message: "invalid pattern", Cause: err}
	}
	return nil
}

// Count returns the number of registered topics.
func (m *Manager) Count() int {
	return m.registry.Count()
}

var (
	defaultManager *Manager
	defaultOnce    sync.Once
)

// Default returns the process-wide manager that package-level topics
// register with.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}
