package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBasic(t *testing.T) {
	e := Event{ID: "1", Event: "task", Data: `{"id":"t1"}`}
	out := Format(e)
	assert.Equal(t, "id: 1\nevent: task\ndata: {\"id\":\"t1\"}\n\n", out)
}

func TestFormatMultilineData(t *testing.T) {
	e := Event{Event: "task", Data: "line1\nline2"}
	out := Format(e)
	assert.Equal(t, "event: task\ndata: line1\ndata: line2\n\n", out)
}

func TestRoundTrip(t *testing.T) {
	original := Event{ID: "42", Event: "task-status-update", Retry: 3000, Data: `{"state":"completed"}`}
	formatted := Format(original)

	var got Event
	found := false
	err := Parse(strings.NewReader(formatted), func(e Event) error {
		got = e
		found = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, original.ID, strings.TrimSpace(got.ID))
	assert.Equal(t, original.Event, strings.TrimSpace(got.Event))
	assert.Equal(t, original.Retry, got.Retry)
	assert.Equal(t, original.Data, strings.TrimSpace(got.Data))
}

func TestParseMultipleEvents(t *testing.T) {
	stream := "event: task\ndata: {\"a\":1}\n\nevent: task-status-update\ndata: {\"b\":2}\n\n"

	var events []Event
	err := Parse(strings.NewReader(stream), func(e Event) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "task", events[0].Event)
	assert.Equal(t, "task-status-update", events[1].Event)
}

func TestParseIgnoresCommentLines(t *testing.T) {
	stream := ": heartbeat\nevent: task\ndata: {}\n\n"
	var events []Event
	err := Parse(strings.NewReader(stream), func(e Event) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
}
