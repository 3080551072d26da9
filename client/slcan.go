package client

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.einride.tech/can"
)

// SLCAN (Lawicel) bit rate commands, indexed by bit rate
var slcanBitRates = map[string]string{
	"10000":   "S0",
	"20000":   "S1",
	"50000":   "S2",
	"100000":  "S3",
	"125000":  "S4",
	"250000":  "S5",
	"500000":  "S6",
	"800000":  "S7",
	"1000000": "S8",
}

// DefaultSlcanBaud is used when a bus config does not set a baud rate
const DefaultSlcanBaud = 115200

// SlcanConn is a CanConn for serial adapters that speak the Lawicel ASCII
// protocol, such as CANable and CANUSB.
type SlcanConn struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	frame  can.Frame
	err    error
	wLock  sync.Mutex
}

// DialSlcan opens a serial port and initializes the adapter on it
func DialSlcan(portName string, baud int, bitRate string) (*SlcanConn, error) {
	if baud == 0 {
		baud = DefaultSlcanBaud
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrap(err, "error opening slcan serial port")
	}

	ret, err := NewSlcanConn(port, bitRate)
	if err != nil {
		port.Close()
		return nil, err
	}

	return ret, nil
}

// NewSlcanConn sets the adapter bit rate, opens the channel, and returns
// a connection that reads and writes frames on port.
func NewSlcanConn(port io.ReadWriteCloser, bitRate string) (*SlcanConn, error) {
	if bitRate == "" {
		bitRate = "250000"
	}

	rateCmd, ok := slcanBitRates[bitRate]
	if !ok {
		return nil, fmt.Errorf("slcan does not support bit rate %v", bitRate)
	}

	ret := &SlcanConn{
		port:   port,
		reader: bufio.NewReader(port),
	}

	// close first in case the adapter was left open
	for _, cmd := range []string{"C", rateCmd, "O"} {
		if err := ret.write(cmd); err != nil {
			return nil, errors.Wrap(err, "error initializing slcan adapter")
		}
	}

	return ret, nil
}

func (s *SlcanConn) write(line string) error {
	s.wLock.Lock()
	defer s.wLock.Unlock()
	_, err := io.WriteString(s.port, line+"\r")
	return err
}

// Receive blocks until a frame is read. It returns false when the port is
// closed or fails.
func (s *SlcanConn) Receive() bool {
	for {
		line, err := s.reader.ReadString('\r')
		if err != nil {
			if err != io.EOF {
				s.err = err
			}
			return false
		}

		// acks are a bare CR or z/Z, errors are BEL
		line = strings.Trim(line, "\r\n\a")
		if line == "" || line == "z" || line == "Z" {
			continue
		}

		f, err := ParseSlcanFrame(line)
		if err != nil {
			// status and version responses are not frames
			continue
		}

		s.frame = f
		return true
	}
}

// Frame returns the frame read by the last successful Receive
func (s *SlcanConn) Frame() can.Frame {
	return s.frame
}

// Err returns the read error that ended Receive, nil on clean close
func (s *SlcanConn) Err() error {
	return s.err
}

// TransmitFrame writes one frame to the adapter
func (s *SlcanConn) TransmitFrame(ctx context.Context, f can.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(FormatSlcanFrame(f))
}

// Close the CAN channel and the serial port
func (s *SlcanConn) Close() error {
	_ = s.write("C")
	return s.port.Close()
}

// FormatSlcanFrame encodes a frame as an SLCAN transmit command, without
// the trailing CR
func FormatSlcanFrame(f can.Frame) string {
	var b strings.Builder

	switch {
	case f.IsExtended && f.IsRemote:
		fmt.Fprintf(&b, "R%08X%d", f.ID, f.Length)
	case f.IsExtended:
		fmt.Fprintf(&b, "T%08X%d", f.ID, f.Length)
	case f.IsRemote:
		fmt.Fprintf(&b, "r%03X%d", f.ID, f.Length)
	default:
		fmt.Fprintf(&b, "t%03X%d", f.ID, f.Length)
	}

	if !f.IsRemote {
		b.WriteString(strings.ToUpper(hex.EncodeToString(f.Data[:f.Length])))
	}

	return b.String()
}

// ParseSlcanFrame decodes a received SLCAN frame line (without CR). Adapters
// with time stamps enabled append 4 hex digits, which are ignored.
func ParseSlcanFrame(line string) (can.Frame, error) {
	var f can.Frame

	if len(line) < 1 {
		return f, errors.New("empty slcan line")
	}

	idLen := 3
	switch line[0] {
	case 't':
	case 'r':
		f.IsRemote = true
	case 'T':
		idLen = 8
		f.IsExtended = true
	case 'R':
		idLen = 8
		f.IsExtended = true
		f.IsRemote = true
	default:
		return f, fmt.Errorf("not an slcan frame: %q", line)
	}

	if len(line) < 1+idLen+1 {
		return f, fmt.Errorf("slcan frame too short: %q", line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return f, errors.Wrap(err, "invalid slcan id")
	}
	f.ID = uint32(id)

	l := line[1+idLen] - '0'
	if l > 8 {
		return f, fmt.Errorf("invalid slcan length: %q", line)
	}
	f.Length = l

	if f.IsRemote {
		return f, nil
	}

	dataHex := line[2+idLen:]
	if len(dataHex) < int(l)*2 {
		return f, fmt.Errorf("slcan frame data short: %q", line)
	}

	_, err = hex.Decode(f.Data[:l], []byte(dataHex[:l*2]))
	if err != nil {
		return f, errors.Wrap(err, "invalid slcan data")
	}

	return f, nil
}
