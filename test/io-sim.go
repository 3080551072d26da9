package test

import (
	"bytes"
	"io"
	"sync"
)

type ioPipe struct {
	buf    bytes.Buffer
	closed bool
}

type ioShared struct {
	lock sync.Mutex
	cond *sync.Cond
	a2b  ioPipe
	b2a  ioPipe
}

// IoSim is used to simulate an io channel such as a serial port. It
// provides both sides so you can easily test code that uses an
// io.ReadWriteCloser.
type IoSim struct {
	s   *ioShared
	in  *ioPipe
	out *ioPipe
}

// NewIoSim creates a new IO sim and returns the A and B side of an IO simulator
func NewIoSim() (*IoSim, *IoSim) {
	s := &ioShared{}
	s.cond = sync.NewCond(&s.lock)

	a := &IoSim{s: s, in: &s.b2a, out: &s.a2b}
	b := &IoSim{s: s, in: &s.a2b, out: &s.b2a}

	return a, b
}

// Write data for the other side to read
func (ios *IoSim) Write(d []byte) (int, error) {
	ios.s.lock.Lock()
	defer ios.s.lock.Unlock()

	if ios.out.closed {
		return 0, io.ErrClosedPipe
	}

	n, err := ios.out.buf.Write(d)
	ios.s.cond.Broadcast()
	return n, err
}

// Read blocks until there is data from the other side or either side is
// closed. After close, buffered data is still returned before io.EOF.
func (ios *IoSim) Read(d []byte) (int, error) {
	ios.s.lock.Lock()
	defer ios.s.lock.Unlock()

	for ios.in.buf.Len() == 0 && !ios.in.closed {
		ios.s.cond.Wait()
	}

	if ios.in.buf.Len() == 0 {
		return 0, io.EOF
	}

	return ios.in.buf.Read(d)
}

// Close both directions of the simulator
func (ios *IoSim) Close() error {
	ios.s.lock.Lock()
	defer ios.s.lock.Unlock()

	ios.in.closed = true
	ios.out.closed = true
	ios.s.cond.Broadcast()
	return nil
}
