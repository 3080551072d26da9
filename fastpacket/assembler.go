package fastpacket

import "time"

// DefaultTimeout is the longest gap allowed between frames of one message
const DefaultTimeout = 750 * time.Millisecond

type stream struct {
	msg     *Message
	updated time.Time
}

// Assembler reassembles interleaved fast-packet messages. Frames are grouped
// by a caller supplied stream key, typically the CAN source address and PGN.
// An Assembler is not safe for concurrent use.
type Assembler struct {
	streams map[uint32]*stream
	timeout time.Duration
	now     func() time.Time
}

// NewAssembler creates an assembler that abandons partial messages after
// timeout. A timeout of 0 selects DefaultTimeout.
func NewAssembler(timeout time.Duration) *Assembler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Assembler{
		streams: make(map[uint32]*stream),
		timeout: timeout,
		now:     time.Now,
	}
}

// Add feeds a frame for stream key. When the frame completes a message the
// payload is returned, otherwise payload is nil. Any error discards the
// partial message of that stream.
func (a *Assembler) Add(key uint32, b []byte) (payload []byte, err error) {
	now := a.now()

	s, ok := a.streams[key]
	if !ok || now.Sub(s.updated) > a.timeout {
		s = &stream{msg: NewMessage()}
		a.streams[key] = s
	}

	s.updated = now

	done, err := s.msg.AddFrame(b)
	if err != nil {
		delete(a.streams, key)
		return nil, err
	}

	if !done {
		return nil, nil
	}

	delete(a.streams, key)

	return s.msg.Payload()
}

// Sweep drops partial messages that have not seen a frame within the
// timeout and returns how many were dropped.
func (a *Assembler) Sweep() int {
	now := a.now()
	count := 0

	for k, s := range a.streams {
		if now.Sub(s.updated) > a.timeout {
			delete(a.streams, k)
			count++
		}
	}

	return count
}

// Pending returns the number of partially received messages
func (a *Assembler) Pending() int {
	return len(a.streams)
}

// Sequencer hands out rolling 3 bit sequence counters, one series per
// stream key. It is not safe for concurrent use.
type Sequencer struct {
	next map[uint32]uint8
}

// NewSequencer returns a Sequencer with every series starting at 0
func NewSequencer() *Sequencer {
	return &Sequencer{next: make(map[uint32]uint8)}
}

// Next returns the sequence counter to use for the next message of key
func (s *Sequencer) Next(key uint32) uint8 {
	seq := s.next[key]
	s.next[key] = (seq + 1) & maxSequenceCounter
	return seq
}
