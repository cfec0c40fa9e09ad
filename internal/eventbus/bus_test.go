package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()

	b := New()
	a, unsubA := b.Subscribe(4)
	defer unsubA()
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: JobCancelled, Data: "job-1"})

	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		assert.Equal(t, JobCancelled, e.Type)
		assert.Equal(t, "job-1", e.Data)
		assert.False(t, e.Time.IsZero())
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: JobScheduled})
	b.Publish(Event{Type: JobDispatched})

	require.Len(t, ch, 1)
	assert.Equal(t, JobScheduled, (<-ch).Type)
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, func() { b.Publish(Event{Type: TaskFinished}) })
}

func TestEventIs(t *testing.T) {
	t.Parallel()

	e := Event{Type: JobCancelled}
	assert.True(t, e.Is("job"))
	assert.True(t, e.Is(JobCancelled))
	assert.False(t, e.Is("jo"))
	assert.False(t, e.Is("schedule"))
}
