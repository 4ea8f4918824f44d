package server

import (
	"sync"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/a2aruntime/a2a/ssrf"
)

// PushStore is the per-task webhook configuration store: one config
// per task, upserted by Set, validated against the SSRF gate at write time
// only.
type PushStore struct {
	mu      sync.RWMutex
	configs map[a2a.TaskId]a2a.PushNotificationConfig
}

// NewPushStore builds an empty push-notification store.
func NewPushStore() *PushStore {
	return &PushStore{configs: make(map[a2a.TaskId]a2a.PushNotificationConfig)}
}

// Set validates and upserts a config for taskID: a second Set
// replaces the first rather than creating another entry.
func (s *PushStore) Set(taskID a2a.TaskId, config a2a.PushNotificationConfig) error {
	if len(config.Events) == 0 {
		return a2a.ValidationError("push notification config must subscribe to at least one event")
	}
	if err := ssrf.Validate(config.URL); err != nil {
		return a2a.ValidationError("push notification url failed validation: " + err.Error())
	}
	if len(config.URL) == 0 {
		return a2a.ValidationError("push notification config must have a url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[taskID] = config
	return nil
}

// Get retrieves the config for a task, if one exists.
func (s *PushStore) Get(taskID a2a.TaskId) (a2a.PushNotificationConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[taskID]
	return c, ok
}

// List returns every stored {taskId, config} pair.
func (s *PushStore) List() []TaskPushConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskPushConfig, 0, len(s.configs))
	for taskID, c := range s.configs {
		out = append(out, TaskPushConfig{TaskId: taskID, Config: c})
	}
	return out
}

// Delete removes a task's config, reporting whether one existed.
func (s *PushStore) Delete(taskID a2a.TaskId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[taskID]; !ok {
		return false
	}
	delete(s.configs, taskID)
	return true
}

// TaskPushConfig pairs a task id with its webhook config, as returned by
// pushNotification/list.
type TaskPushConfig struct {
	TaskId a2a.TaskId               `json:"taskId"`
	Config a2a.PushNotificationConfig `json:"config"`
}
