package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookQueueDeliversAndAppliesBearerAuth(t *testing.T) {
	var gotAuth string
	var gotBody a2a.WebhookPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := NewWebhookQueue(10, time.Second, DefaultWebhookRetryPolicy(), zap.NewNop())
	defer q.Close()

	config := a2a.PushNotificationConfig{
		URL:    srv.URL,
		Events: []a2a.TaskEvent{a2a.TaskEventCompleted},
		Auth:   &a2a.PushAuth{Bearer: &a2a.BearerAuth{Token: "tok"}},
	}
	payload := a2a.WebhookPayload{Event: a2a.TaskEventCompleted, Task: a2a.NewTask(nil), Timestamp: "2025-01-01T00:00:00Z", AgentId: "agent-1"}

	require.NoError(t, q.Enqueue(config, payload))

	require.Eventually(t, func() bool { return gotAuth != "" }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, a2a.TaskEventCompleted, gotBody.Event)
}

func TestWebhookQueueRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 4 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	policy := WebhookRetryPolicy{InitialDelay: 5 * time.Millisecond, Multiplier: 2, MaxDelay: 50 * time.Millisecond, MaxAttempts: 5}
	q := NewWebhookQueue(10, time.Second, policy, zap.NewNop())
	defer q.Close()

	config := a2a.PushNotificationConfig{URL: srv.URL, Events: []a2a.TaskEvent{a2a.TaskEventCompleted}}
	payload := a2a.WebhookPayload{Event: a2a.TaskEventCompleted, Task: a2a.NewTask(nil), Timestamp: "2025-01-01T00:00:00Z"}

	require.NoError(t, q.Enqueue(config, payload))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 4 }, 2*time.Second, 5*time.Millisecond,
		"delivery should succeed on attempt 4 (S5)")
}

func TestWebhookQueueDropsAfterMaxAttempts(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	policy := WebhookRetryPolicy{InitialDelay: 2 * time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Millisecond, MaxAttempts: 3}
	q := NewWebhookQueue(10, time.Second, policy, zap.NewNop())
	defer q.Close()

	config := a2a.PushNotificationConfig{URL: srv.URL, Events: []a2a.TaskEvent{a2a.TaskEventFailed}}
	payload := a2a.WebhookPayload{Event: a2a.TaskEventFailed, Task: a2a.NewTask(nil), Timestamp: "2025-01-01T00:00:00Z"}

	require.NoError(t, q.Enqueue(config, payload))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts), "must stop retrying and drop after max attempts")
}

func TestWebhookRetryPolicyDelayFormula(t *testing.T) {
	p := WebhookRetryPolicy{InitialDelay: time.Second, Multiplier: 2, MaxDelay: 60 * time.Second}
	assert.Equal(t, time.Second, p.delayFor(0))
	assert.Equal(t, 2*time.Second, p.delayFor(1))
	assert.Equal(t, 4*time.Second, p.delayFor(2))
	assert.Equal(t, 60*time.Second, p.delayFor(10), "must cap at dMax")
}
