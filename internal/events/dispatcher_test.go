package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeliversToAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)

	var got []string
	d.Subscribe(EventEscalationTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.TicketID)
		return errors.New("first handler fails")
	})
	d.Subscribe(EventEscalationTicketCreated, func(_ context.Context, e Event) error {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
		got = append(got, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventEscalationDeduplicated, func(_ context.Context, e Event) error {
		got = append(got, "dedup:"+e.TicketID)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventEscalationTicketCreated, TicketID: "T-1"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"first:T-1", "second:T-1"}, got)
}
