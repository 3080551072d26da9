package test

import (
	"context"
	"errors"
	"sync"

	"go.einride.tech/can"
)

// ErrCanSimClosed is returned when transmitting on a closed CanSim
var ErrCanSimClosed = errors.New("can sim closed")

// CanSim simulates a CAN bus connection. Frames passed to Inject are
// returned by Receive and transmitted frames can be read from Sent.
type CanSim struct {
	rx        chan can.Frame
	tx        chan can.Frame
	frame     can.Frame
	closed    chan struct{}
	closeOnce sync.Once
}

// NewCanSim creates a simulated bus connection
func NewCanSim() *CanSim {
	return &CanSim{
		rx:     make(chan can.Frame, 64),
		tx:     make(chan can.Frame, 64),
		closed: make(chan struct{}),
	}
}

// Inject queues a frame as if it was received from the bus
func (c *CanSim) Inject(f can.Frame) {
	c.rx <- f
}

// Sent returns the frames transmitted on the connection
func (c *CanSim) Sent() <-chan can.Frame {
	return c.tx
}

// Receive blocks until a frame is injected or the sim is closed
func (c *CanSim) Receive() bool {
	select {
	case f := <-c.rx:
		c.frame = f
		return true
	case <-c.closed:
		return false
	}
}

// Frame returns the last received frame
func (c *CanSim) Frame() can.Frame {
	return c.frame
}

// Err always returns nil, a closed sim ends cleanly
func (c *CanSim) Err() error {
	return nil
}

// TransmitFrame records f for Sent
func (c *CanSim) TransmitFrame(ctx context.Context, f can.Frame) error {
	select {
	case c.tx <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrCanSimClosed
	}
}

// Close the sim, ending Receive
func (c *CanSim) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
