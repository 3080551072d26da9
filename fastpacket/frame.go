package fastpacket

import (
	"fmt"
	"strings"
)

// FrameLen is the size of every fast-packet frame
const FrameLen = 8

const (
	firstFrameDataLen       = 6
	consecutiveFrameDataLen = 7
	maxSequenceCounter      = 7
	maxFrameCounter         = 31
	padByte                 = 0xFF
)

// Kind describes the role of a frame within a message
type Kind uint8

// Frame kinds
const (
	KindSingle Kind = iota
	KindFirst
	KindConsecutive
	KindFlow
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindFirst:
		return "first"
	case KindConsecutive:
		return "consecutive"
	case KindFlow:
		return "flow"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// FlowKind is the flow control state reported by a receiver
type FlowKind uint8

// Flow control states
const (
	FlowContinue FlowKind = iota
	FlowWait
	FlowAbort
)

func (f FlowKind) String() string {
	switch f {
	case FlowContinue:
		return "continue"
	case FlowWait:
		return "wait"
	case FlowAbort:
		return "abort"
	default:
		return fmt.Sprintf("FlowKind(%d)", uint8(f))
	}
}

// Frame is one 8 byte CAN payload of a fast-packet message
type Frame struct {
	Bytes [FrameLen]byte
}

// FirstFrame builds the frame that starts a message. length is the total
// payload length of the message.
func FirstFrame(data [firstFrameDataLen]byte, length, seq uint8) Frame {
	var f Frame
	f.Bytes[0] = seq << 5
	f.Bytes[1] = length
	copy(f.Bytes[2:], data[:])
	return f
}

// ConsecutiveFrame builds a continuation frame. seq must fit in 3 bits and
// frameCounter in 5 bits.
func ConsecutiveFrame(data [consecutiveFrameDataLen]byte, seq, frameCounter uint8) (Frame, error) {
	if seq > maxSequenceCounter || frameCounter > maxFrameCounter {
		return Frame{}, ErrInvalidParameter
	}

	var f Frame
	f.Bytes[0] = seq<<5 | frameCounter
	copy(f.Bytes[1:], data[:])
	return f, nil
}

// FrameFromBytes copies up to 8 bytes into a frame. Missing bytes are zero.
func FrameFromBytes(b []byte) Frame {
	var f Frame
	copy(f.Bytes[:], b)
	return f
}

// SequenceCounter returns the 3 bit message sequence counter
func (f Frame) SequenceCounter() uint8 {
	return (f.Bytes[0] & 0xE0) >> 5
}

// FrameCounter returns the 5 bit position of the frame in its message
func (f Frame) FrameCounter() uint8 {
	return f.Bytes[0] & 0x1F
}

// IsFirstFrame is true for the frame that carries the message length
func (f Frame) IsFirstFrame() bool {
	return f.FrameCounter() == 0
}

// DataLen returns the total message length announced by a first frame. ok is
// false for consecutive frames.
func (f Frame) DataLen() (length uint8, ok bool) {
	if !f.IsFirstFrame() {
		return 0, false
	}
	return f.Bytes[1], true
}

// Payload returns the message bytes carried by this frame, including padding
func (f Frame) Payload() []byte {
	if f.IsFirstFrame() {
		return f.Bytes[2:]
	}
	return f.Bytes[1:]
}

// Kind classifies the frame. A first frame that announces 6 bytes or less is
// a single frame message.
func (f Frame) Kind() Kind {
	if !f.IsFirstFrame() {
		return KindConsecutive
	}
	if f.Bytes[1] <= firstFrameDataLen {
		return KindSingle
	}
	return KindFirst
}

func (f Frame) String() string {
	var s strings.Builder
	for i, b := range f.Bytes {
		if i != 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "%02X", b)
	}
	return s.String()
}

// frameCount returns the number of frames needed to carry length bytes
func frameCount(length int) int {
	if length <= firstFrameDataLen {
		return 1
	}
	rest := length - firstFrameDataLen
	return 1 + (rest+consecutiveFrameDataLen-1)/consecutiveFrameDataLen
}
