package fastpacket

// MaxPacketSize is the largest payload a fast-packet message can carry
const MaxPacketSize = firstFrameDataLen + maxFrameCounter*consecutiveFrameDataLen

// MaxFrames is the number of frames in a message of MaxPacketSize bytes
const MaxFrames = maxFrameCounter + 1

type messageType uint8

const (
	messageTypeUnknown messageType = iota
	messageTypeSingle
	messageTypeConsecutive
)

type direction uint8

const (
	directionRx direction = iota
	directionTx
)

// Message is a fast-packet message being received (built up with AddFrame)
// or transmitted (created with MessageFromPayload and drained with PopFrame).
// A Message is not safe for concurrent use.
type Message struct {
	queue           []Frame
	msgType         messageType
	dir             direction
	numFrames       uint8
	dataLen         uint8
	seq             uint8
	curFrameCounter uint8
}

// NewMessage returns an empty message ready to receive frames
func NewMessage() *Message {
	return &Message{
		queue: make([]Frame, 0, MaxFrames),
	}
}

// MessageFromPayload splits payload into frames for transmission. seq is the
// 3 bit sequence counter stamped on every frame.
func MessageFromPayload(payload []byte, seq uint8) (*Message, error) {
	if len(payload) > MaxPacketSize {
		return nil, ErrPayloadTooLong
	}

	if seq > maxSequenceCounter {
		return nil, ErrInvalidParameter
	}

	m := &Message{
		queue:   make([]Frame, 0, frameCount(len(payload))),
		dir:     directionTx,
		dataLen: uint8(len(payload)),
		seq:     seq,
	}

	var first [firstFrameDataLen]byte
	fill(first[:])
	n := copy(first[:], payload)
	m.queue = append(m.queue, FirstFrame(first, m.dataLen, seq))

	if len(payload) <= firstFrameDataLen {
		m.msgType = messageTypeSingle
		m.numFrames = 1
		return m, nil
	}

	rest := payload[n:]
	for fc := uint8(1); len(rest) > 0; fc++ {
		var chunk [consecutiveFrameDataLen]byte
		fill(chunk[:])
		n = copy(chunk[:], rest)
		rest = rest[n:]

		f, err := ConsecutiveFrame(chunk, seq, fc)
		if err != nil {
			return nil, err
		}
		m.queue = append(m.queue, f)
	}

	m.msgType = messageTypeConsecutive
	m.numFrames = uint8(len(m.queue))

	return m, nil
}

// AddFrame adds a received 8 byte frame to the message. It returns true when
// the frame completes the message. A first frame always starts the message
// over, dropping any partially received frames.
func (m *Message) AddFrame(b []byte) (bool, error) {
	if len(b) != FrameLen {
		return false, ErrFrameLength
	}

	if m.dir == directionTx {
		return false, ErrTransmissionTypeMismatch
	}

	if m.Complete() {
		return false, ErrFullQueue
	}

	f := FrameFromBytes(b)

	if f.IsFirstFrame() {
		length, _ := f.DataLen()
		if int(length) > MaxPacketSize {
			return false, ErrInvalidParameter
		}

		m.queue = append(m.queue[:0], f)
		m.numFrames = uint8(frameCount(int(length)))
		m.dataLen = length
		m.seq = f.SequenceCounter()
		m.curFrameCounter = 0

		if m.numFrames == 1 {
			m.msgType = messageTypeSingle
			return true, nil
		}

		m.msgType = messageTypeConsecutive
		return false, nil
	}

	if len(m.queue) == 0 {
		return false, ErrNoFirstFrame
	}

	if f.SequenceCounter() != m.seq {
		return false, ErrSequenceCount
	}

	if f.FrameCounter() != m.curFrameCounter+1 {
		return false, ErrSequenceMismatch
	}

	m.queue = append(m.queue, f)
	m.curFrameCounter = f.FrameCounter()

	return m.curFrameCounter >= m.numFrames-1, nil
}

// PopFrame removes and returns the oldest queued frame
func (m *Message) PopFrame() (Frame, bool) {
	if len(m.queue) == 0 {
		return Frame{}, false
	}

	f := m.queue[0]
	m.queue = m.queue[1:]
	return f, true
}

// Payload drains the queued frames and returns the message data. Bytes of
// frames that never arrived read as 0xFF.
func (m *Message) Payload() ([]byte, error) {
	if len(m.queue) == 0 {
		return nil, ErrEmptyQueue
	}

	buf := make([]byte, MaxPacketSize)
	fill(buf)

	i := 0
	for {
		f, ok := m.PopFrame()
		if !ok {
			break
		}

		if f.IsFirstFrame() {
			i = copy(buf, f.Payload())
			continue
		}

		i += copy(buf[i:], f.Payload())
	}

	return buf[:m.dataLen], nil
}

// Clear resets the message to an empty receive message
func (m *Message) Clear() {
	m.queue = m.queue[:0]
	m.msgType = messageTypeUnknown
	m.dir = directionRx
	m.numFrames = 0
	m.dataLen = 0
	m.seq = 0
	m.curFrameCounter = 0
}

// Complete is true once every frame announced by the first frame is queued
func (m *Message) Complete() bool {
	return len(m.queue) > 0 && len(m.queue) == int(m.numFrames)
}

// NumFrames is the number of frames that make up the message
func (m *Message) NumFrames() uint8 {
	return m.numFrames
}

// SequenceCounter is the 3 bit counter shared by all frames of the message
func (m *Message) SequenceCounter() uint8 {
	return m.seq
}

// DataLen is the payload length of the message
func (m *Message) DataLen() uint8 {
	return m.dataLen
}

// Queued is the number of frames currently held
func (m *Message) Queued() int {
	return len(m.queue)
}

func fill(b []byte) {
	for i := range b {
		b[i] = padByte
	}
}
