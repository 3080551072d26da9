package client

import (
	"context"
	"fmt"
	"log"
	"net"
	"os/exec"

	"github.com/pkg/errors"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// Bus connection types
const (
	BusTypeSocketCan = "socketcan"
	BusTypeSlcan     = "slcan"
)

// CanConn is a connection to a CAN bus. Receive, Frame, and Err follow the
// scanner pattern of socketcan.Receiver and are only called from one
// goroutine. TransmitFrame may be called concurrently with Receive.
type CanConn interface {
	Receive() bool
	Frame() can.Frame
	Err() error
	TransmitFrame(ctx context.Context, f can.Frame) error
	Close() error
}

// Dialer opens a connection for a bus config
type Dialer func(ctx context.Context, bus CanBus) (CanConn, error)

// Dial opens a bus using the connection type in its config
func Dial(ctx context.Context, bus CanBus) (CanConn, error) {
	switch bus.Type {
	case "", BusTypeSocketCan:
		return DialSocketCan(ctx, bus.Device, bus.BitRate)
	case BusTypeSlcan:
		conn, err := DialSlcan(bus.Device, bus.Baud, bus.BitRate)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown bus type: %v", bus.Type)
	}
}

type socketCanConn struct {
	conn net.Conn
	recv *socketcan.Receiver
	tx   *socketcan.Transmitter
}

// DialSocketCan connects to a Linux SocketCAN interface. If the interface is
// down it is brought up at bitRate first.
func DialSocketCan(ctx context.Context, device, bitRate string) (CanConn, error) {
	iface, err := net.InterfaceByName(device)
	if err != nil {
		return nil, errors.Wrap(err, "socketCan interface not found")
	}

	if iface.Flags&net.FlagUp == 0 {
		err = exec.Command(
			"ip", "link", "set", device, "up", "type",
			"can", "bitrate", bitRate).Run()
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("error bringing up socketCan interface with: device=%v, bitrate=%v",
				device, bitRate))
		}
		log.Println("CanBus: brought up socketCan interface with:", device, bitRate)
	}

	conn, err := socketcan.DialContext(ctx, "can", device)
	if err != nil {
		return nil, errors.Wrap(err, "error dialing socketcan context")
	}

	return &socketCanConn{
		conn: conn,
		recv: socketcan.NewReceiver(conn),
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

func (s *socketCanConn) Receive() bool {
	return s.recv.Receive()
}

func (s *socketCanConn) Frame() can.Frame {
	return s.recv.Frame()
}

func (s *socketCanConn) Err() error {
	return s.recv.Err()
}

func (s *socketCanConn) TransmitFrame(ctx context.Context, f can.Frame) error {
	return s.tx.TransmitFrame(ctx, f)
}

func (s *socketCanConn) Close() error {
	return s.conn.Close()
}
