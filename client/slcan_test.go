package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/simpleiot/n2kfast/test"
	"go.einride.tech/can"
)

func TestSlcanFrameFormat(t *testing.T) {
	tests := []struct {
		frame can.Frame
		line  string
	}{
		{
			can.Frame{ID: 0x09F80503, IsExtended: true, Length: 8,
				Data: can.Data{0x00, 0x19, 0x12, 0x7C, 0xEA, 0xD5, 0x12, 0x3D}},
			"T09F805038001912 7CEAD5123D",
		},
		{
			can.Frame{ID: 0x123, Length: 2, Data: can.Data{0xAA, 0xBB}},
			"t1232AABB",
		},
		{
			can.Frame{ID: 0x7FF, Length: 0},
			"t7FF0",
		},
		{
			can.Frame{ID: 0x18EAFF01, IsExtended: true, IsRemote: true, Length: 3},
			"R18EAFF013",
		},
	}

	for _, test := range tests {
		exp := strings.ReplaceAll(test.line, " ", "")

		line := FormatSlcanFrame(test.frame)
		if line != exp {
			t.Errorf("format: got %v, expected %v", line, exp)
		}

		f, err := ParseSlcanFrame(exp)
		if err != nil {
			t.Errorf("parse %v: %v", exp, err)
			continue
		}

		if f != test.frame {
			t.Errorf("parse %v: got %+v", exp, f)
		}
	}
}

func TestSlcanParseErrors(t *testing.T) {
	for _, line := range []string{"", "V1013", "T09F8", "t1239AA", "t1232AA", "t12ZZ"} {
		if _, err := ParseSlcanFrame(line); err == nil {
			t.Error("expected error for: ", line)
		}
	}
}

func TestSlcanConn(t *testing.T) {
	a, b := test.NewIoSim()

	conn, err := NewSlcanConn(b, "250000")
	if err != nil {
		t.Fatal("Error creating conn: ", err)
	}

	buf := make([]byte, 100)
	n, err := a.Read(buf)
	if err != nil {
		t.Fatal(err)
	}

	if string(buf[:n]) != "C\rS5\rO\r" {
		t.Errorf("init commands: %q", string(buf[:n]))
	}

	a.Write([]byte("\rz\rV1013\r\aT09F8050380019127CEAD5123D\rt1232AABB\r"))

	if !conn.Receive() {
		t.Fatal("receive failed: ", conn.Err())
	}

	f := conn.Frame()
	if f.ID != 0x09F80503 || !f.IsExtended || f.Data[1] != 0x19 {
		t.Errorf("first frame: %v", test.FrameDump(f))
	}

	if !conn.Receive() {
		t.Fatal("receive failed: ", conn.Err())
	}

	f = conn.Frame()
	if f.ID != 0x123 || f.IsExtended || f.Length != 2 {
		t.Errorf("second frame: %v", test.FrameDump(f))
	}

	err = conn.TransmitFrame(context.Background(), can.Frame{ID: 0x1, Length: 1, Data: can.Data{0x55}})
	if err != nil {
		t.Fatal(err)
	}

	n, err = a.Read(buf)
	if err != nil {
		t.Fatal(err)
	}

	if string(buf[:n]) != "t001155\r" {
		t.Errorf("transmitted: %q", string(buf[:n]))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := conn.TransmitFrame(ctx, can.Frame{}); err == nil {
		t.Error("transmit with canceled context should fail")
	}

	done := make(chan bool)
	go func() {
		done <- conn.Receive()
	}()

	a.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("receive should fail after close")
		}
	case <-time.After(time.Second):
		t.Fatal("receive did not return after close")
	}

	if conn.Err() != nil {
		t.Error("clean close should not report an error: ", conn.Err())
	}
}

func TestSlcanBitRate(t *testing.T) {
	_, b := test.NewIoSim()
	if _, err := NewSlcanConn(b, "333333"); err == nil {
		t.Error("expected error for unsupported bit rate")
	}
}
