package shutdown

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/psantana5/regtimer/internal/logging"
)

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestShutdownRunsHooksInReverseOnce(t *testing.T) {
	var buf bytes.Buffer
	m := New(time.Second, logging.New(&buf, logging.DEBUG, false))

	var order []string
	m.Register("first", func(context.Context) error { order = append(order, "first"); return nil })
	m.Register("second", func(context.Context) error { order = append(order, "second"); return errors.New("stuck") })
	c := &closer{}
	m.RegisterCloser("third", c)

	assert.Equal(t, 1, m.Shutdown())
	assert.Equal(t, []string{"second", "first"}, order)
	assert.True(t, c.closed)
	assert.Contains(t, buf.String(), "shutdown of second failed")

	assert.Equal(t, 0, m.Shutdown())
	assert.Len(t, order, 2)
}

func TestShutdownHooksSeeDeadline(t *testing.T) {
	m := New(50*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	assert.Equal(t, 1, m.Shutdown())
	assert.Less(t, time.Since(start), time.Second)
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(context.Background())
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
