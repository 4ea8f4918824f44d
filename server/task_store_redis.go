package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/redis/go-redis/v9"
	zap "go.uber.org/zap"
)

// RedisConfig configures the optional Redis-backed durable TaskStore. The
// core spec requires only the in-memory store; this is an implementation
// MAY-add, for deployments that need task state to survive a restart.
type RedisConfig struct {
	URL         string
	DB          int
	DialTimeout time.Duration
}

const taskKeyPrefix = "a2a:task:"

// RedisTaskStore is a durable TaskStore backed by Redis, with the same
// transition-validation semantics as InMemoryTaskStore. Each task is
// stored as a single JSON blob under a per-id key; there is no separate
// active/dead-letter split since terminal state is already tracked on the
// task itself.
type RedisTaskStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTaskStore dials Redis and returns a store backed by it.
func NewRedisTaskStore(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisTaskStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("connected to redis task store", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return &RedisTaskStore{client: client, logger: logger}, nil
}

func taskKey(id a2a.TaskId) string {
	return taskKeyPrefix + string(id)
}

func (s *RedisTaskStore) readTask(ctx context.Context, id a2a.TaskId) (a2a.Task, error) {
	raw, err := s.client.Get(ctx, taskKey(id)).Bytes()
	if err == redis.Nil {
		return a2a.Task{}, a2a.TaskNotFoundError(id)
	}
	if err != nil {
		return a2a.Task{}, fmt.Errorf("redis get task %s: %w", id, err)
	}

	var task a2a.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return a2a.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return task, nil
}

func (s *RedisTaskStore) writeTask(ctx context.Context, task a2a.Task) error {
	encoded, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.Id, err)
	}
	return s.client.Set(ctx, taskKey(task.Id), encoded, 0).Err()
}

// Store inserts or replaces a task.
func (s *RedisTaskStore) Store(task a2a.Task) {
	ctx := context.Background()
	if err := s.writeTask(ctx, task); err != nil {
		s.logger.Error("failed to store task", zap.String("task_id", string(task.Id)), zap.Error(err))
	}
}

// Get retrieves a task by id.
func (s *RedisTaskStore) Get(id a2a.TaskId) (a2a.Task, error) {
	return s.readTask(context.Background(), id)
}

// GetStatus retrieves just the current status of a task.
func (s *RedisTaskStore) GetStatus(id a2a.TaskId) (a2a.TaskStatus, error) {
	task, err := s.Get(id)
	if err != nil {
		return a2a.TaskStatus{}, err
	}
	return task.Status, nil
}

// Update fully replaces a stored task.
func (s *RedisTaskStore) Update(task a2a.Task) error {
	ctx := context.Background()
	if _, err := s.readTask(ctx, task.Id); err != nil {
		return err
	}
	return s.writeTask(ctx, task)
}

// UpdateState validates and applies a state transition, using WATCH to
// guard against a concurrent writer racing the read-modify-write.
func (s *RedisTaskStore) UpdateState(id a2a.TaskId, newState a2a.TaskState, reason string) (a2a.Task, error) {
	ctx := context.Background()
	var result a2a.Task

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		task, err := s.readTask(ctx, id)
		if err != nil {
			return err
		}

		if !a2a.CanTransition(task.Status.State, newState) {
			return a2a.UnsupportedOperationError("illegal task state transition",
				map[string]interface{}{"taskId": string(id), "from": string(task.Status.State), "to": string(newState)})
		}

		prior := task.Status
		task.Status = a2a.NewTaskStatus(newState, reason)
		task.History = append(task.History, prior)

		encoded, err := json.Marshal(task)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, taskKey(id), encoded, 0)
			return nil
		})
		result = task
		return err
	}, taskKey(id))

	if err != nil {
		return a2a.Task{}, err
	}
	return result, nil
}

// AddArtifact appends an artifact to the task's artifact list.
func (s *RedisTaskStore) AddArtifact(id a2a.TaskId, artifact a2a.Artifact) (a2a.Task, error) {
	ctx := context.Background()
	task, err := s.readTask(ctx, id)
	if err != nil {
		return a2a.Task{}, err
	}
	task.Artifacts = append(task.Artifacts, artifact)
	if err := s.writeTask(ctx, task); err != nil {
		return a2a.Task{}, err
	}
	return task, nil
}

// Cancel transitions a task to Cancelled, refusing if already terminal.
func (s *RedisTaskStore) Cancel(id a2a.TaskId, reason string) (a2a.Task, error) {
	ctx := context.Background()
	task, err := s.readTask(ctx, id)
	if err != nil {
		return a2a.Task{}, err
	}
	if task.Status.State.IsTerminal() {
		return a2a.Task{}, a2a.TaskNotCancelableError(id, task.Status.State)
	}

	prior := task.Status
	task.Status = a2a.NewTaskStatus(a2a.TaskStateCancelled, reason)
	task.History = append(task.History, prior)
	if err := s.writeTask(ctx, task); err != nil {
		return a2a.Task{}, err
	}
	return task, nil
}

// ListAll scans every stored task. Intended for small/dev deployments;
// production use should paginate via SCAN cursors rather than KEYS.
func (s *RedisTaskStore) ListAll() []a2a.Task {
	ctx := context.Background()
	keys, err := s.client.Keys(ctx, taskKeyPrefix+"*").Result()
	if err != nil {
		s.logger.Error("failed to list task keys", zap.Error(err))
		return nil
	}

	out := make([]a2a.Task, 0, len(keys))
	for _, key := range keys {
		raw, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var task a2a.Task
		if json.Unmarshal(raw, &task) == nil {
			out = append(out, task)
		}
	}
	return out
}

// ListByState filters ListAll by state.
func (s *RedisTaskStore) ListByState(state a2a.TaskState) []a2a.Task {
	var out []a2a.Task
	for _, t := range s.ListAll() {
		if t.Status.State == state {
			out = append(out, t)
		}
	}
	return out
}

// Delete removes a task, reporting whether it existed.
func (s *RedisTaskStore) Delete(id a2a.TaskId) bool {
	n, err := s.client.Del(context.Background(), taskKey(id)).Result()
	if err != nil {
		s.logger.Error("failed to delete task", zap.String("task_id", string(id)), zap.Error(err))
		return false
	}
	return n > 0
}

// Count returns the number of stored tasks.
func (s *RedisTaskStore) Count() int {
	return len(s.ListAll())
}

// Clear removes every task under the task key prefix. Test only.
func (s *RedisTaskStore) Clear() {
	ctx := context.Background()
	keys, err := s.client.Keys(ctx, taskKeyPrefix+"*").Result()
	if err != nil || len(keys) == 0 {
		return
	}
	s.client.Del(ctx, keys...)
}

var _ TaskStore = (*RedisTaskStore)(nil)
