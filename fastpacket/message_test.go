package fastpacket

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	testFrame1 = []byte{0x00, 0x19, 0x12, 0x7C, 0xEA, 0xD5, 0x12, 0x3D}
	testFrame2 = []byte{0x01, 0x31, 0xF3, 0xD0, 0xAC, 0xF2, 0x23, 0x1A}
	testFrame3 = []byte{0x02, 0x03, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00}
	testFrame4 = []byte{0x03, 0x20, 0xFF, 0xFF, 0x00, 0x70, 0xFF, 0xFF}

	testPayload = []byte{
		0x12, 0x7C, 0xEA, 0xD5, 0x12, 0x3D, 0x31, 0xF3, 0xD0, 0xAC, 0xF2, 0x23, 0x1A, 0x03,
		0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x20, 0xFF, 0xFF, 0x00, 0x70,
	}
)

func TestMessageRx(t *testing.T) {
	msg := NewMessage()

	for i, f := range [][]byte{testFrame1, testFrame2, testFrame3} {
		done, err := msg.AddFrame(f)
		if err != nil {
			t.Fatalf("frame %v: %v", i, err)
		}
		if done {
			t.Fatalf("frame %v should not complete the message", i)
		}
	}

	done, err := msg.AddFrame(testFrame4)
	if err != nil {
		t.Fatal("last frame: ", err)
	}
	if !done {
		t.Fatal("last frame should complete the message")
	}

	if msg.NumFrames() != 4 {
		t.Error("num frames: ", msg.NumFrames())
	}

	if msg.SequenceCounter() != 0 {
		t.Error("sequence counter: ", msg.SequenceCounter())
	}

	_, err = msg.AddFrame(testFrame1)
	if err != ErrFullQueue {
		t.Fatal("expected full queue error, got: ", err)
	}

	if err.Error() != "Queue is already full" {
		t.Error("error text changed: ", err)
	}

	payload, err := msg.Payload()
	if err != nil {
		t.Fatal("payload: ", err)
	}

	if diff := cmp.Diff(testPayload, payload); diff != "" {
		t.Error("payload mismatch (-want +got):\n", diff)
	}
}

func TestMessageTx(t *testing.T) {
	msg, err := MessageFromPayload(testPayload, 0)
	if err != nil {
		t.Fatal("from payload: ", err)
	}

	if msg.NumFrames() != 4 || msg.DataLen() != 25 {
		t.Errorf("num frames %v, data len %v", msg.NumFrames(), msg.DataLen())
	}

	for i, exp := range [][]byte{testFrame1, testFrame2, testFrame3, testFrame4} {
		f, ok := msg.PopFrame()
		if !ok {
			t.Fatalf("frame %v missing", i)
		}
		if !bytes.Equal(f.Bytes[:], exp) {
			t.Errorf("frame %v: got %v, expected % X", i, f, exp)
		}
	}

	if _, ok := msg.PopFrame(); ok {
		t.Error("queue should be empty")
	}
}

func TestMessageTxRejectsFrames(t *testing.T) {
	msg, err := MessageFromPayload([]byte{1, 2, 3}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := msg.AddFrame(testFrame1); err != ErrTransmissionTypeMismatch {
		t.Error("expected transmission type error, got: ", err)
	}
}

func TestMessageSingleFrame(t *testing.T) {
	msg, err := MessageFromPayload([]byte{0xA1, 0xA2, 0xA3}, 5)
	if err != nil {
		t.Fatal(err)
	}

	if msg.NumFrames() != 1 {
		t.Error("num frames: ", msg.NumFrames())
	}

	f, _ := msg.PopFrame()
	exp := [8]byte{5 << 5, 3, 0xA1, 0xA2, 0xA3, 0xFF, 0xFF, 0xFF}
	if f.Bytes != exp {
		t.Error("single frame: ", f)
	}

	rx := NewMessage()
	done, err := rx.AddFrame(f.Bytes[:])
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("single frame should complete the message")
	}

	p, err := rx.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p, []byte{0xA1, 0xA2, 0xA3}) {
		t.Errorf("payload % X", p)
	}
}

func TestMessageAddFrameLength(t *testing.T) {
	msg := NewMessage()
	if _, err := msg.AddFrame([]byte{0, 1, 2}); err != ErrFrameLength {
		t.Error("expected frame length error, got: ", err)
	}
}

func TestMessageSequenceErrors(t *testing.T) {
	msg := NewMessage()

	if _, err := msg.AddFrame(testFrame2); err != ErrNoFirstFrame {
		t.Error("expected no first frame error, got: ", err)
	}

	if _, err := msg.AddFrame(testFrame1); err != nil {
		t.Fatal(err)
	}

	// frame counter 2 when 1 is expected
	if _, err := msg.AddFrame(testFrame3); err != ErrSequenceMismatch {
		t.Error("expected sequence mismatch, got: ", err)
	}

	// right frame counter, wrong sequence counter
	wrongSeq := append([]byte{}, testFrame2...)
	wrongSeq[0] = 1<<5 | 1
	if _, err := msg.AddFrame(wrongSeq); err != ErrSequenceCount {
		t.Error("expected sequence count error, got: ", err)
	}

	// the message is still usable after errors
	for _, f := range [][]byte{testFrame2, testFrame3, testFrame4} {
		if _, err := msg.AddFrame(f); err != nil {
			t.Fatal(err)
		}
	}

	if !msg.Complete() {
		t.Error("message should be complete")
	}
}

func TestMessageFirstFrameRestarts(t *testing.T) {
	msg := NewMessage()

	for _, f := range [][]byte{testFrame1, testFrame2, testFrame1, testFrame2, testFrame3, testFrame4} {
		if _, err := msg.AddFrame(f); err != nil {
			t.Fatal(err)
		}
	}

	p, err := msg.Payload()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(p, testPayload) {
		t.Errorf("payload % X", p)
	}
}

func TestMessagePayloadEmpty(t *testing.T) {
	msg := NewMessage()
	if _, err := msg.Payload(); err != ErrEmptyQueue {
		t.Error("expected empty queue error, got: ", err)
	}
}

func TestMessageClear(t *testing.T) {
	msg, err := MessageFromPayload(testPayload, 3)
	if err != nil {
		t.Fatal(err)
	}

	msg.Clear()

	if msg.NumFrames() != 0 || msg.DataLen() != 0 || msg.SequenceCounter() != 0 || msg.Queued() != 0 {
		t.Error("message not cleared")
	}

	// a cleared message receives again
	if _, err := msg.AddFrame(testFrame1); err != nil {
		t.Error("cleared message rejected frame: ", err)
	}
}

func TestMessagePayloadLimits(t *testing.T) {
	if _, err := MessageFromPayload(make([]byte, MaxPacketSize+1), 0); err != ErrPayloadTooLong {
		t.Error("expected payload too long, got: ", err)
	}

	if _, err := MessageFromPayload([]byte{1}, 8); err != ErrInvalidParameter {
		t.Error("expected invalid parameter, got: ", err)
	}

	msg, err := MessageFromPayload(make([]byte, MaxPacketSize), 7)
	if err != nil {
		t.Fatal(err)
	}

	if msg.NumFrames() != MaxFrames {
		t.Error("max payload frames: ", msg.NumFrames())
	}

	rx := NewMessage()
	first := FirstFrame([6]byte{}, 224, 0)
	if _, err := rx.AddFrame(first.Bytes[:]); err != ErrInvalidParameter {
		t.Error("expected invalid parameter for length 224, got: ", err)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for l := 0; l <= MaxPacketSize; l++ {
		payload := make([]byte, l)
		r.Read(payload)
		seq := uint8(l % 8)

		tx, err := MessageFromPayload(payload, seq)
		if err != nil {
			t.Fatalf("len %v: %v", l, err)
		}

		if int(tx.NumFrames()) != frameCount(l) {
			t.Fatalf("len %v: %v frames, expected %v", l, tx.NumFrames(), frameCount(l))
		}

		rx := NewMessage()
		var done bool
		for {
			f, ok := tx.PopFrame()
			if !ok {
				break
			}
			if done {
				t.Fatalf("len %v: frames left after completion", l)
			}
			done, err = rx.AddFrame(f.Bytes[:])
			if err != nil {
				t.Fatalf("len %v: add frame: %v", l, err)
			}
		}

		if !done {
			t.Fatalf("len %v: message not complete", l)
		}

		if rx.SequenceCounter() != seq {
			t.Fatalf("len %v: seq %v", l, rx.SequenceCounter())
		}

		got, err := rx.Payload()
		if err != nil {
			t.Fatalf("len %v: %v", l, err)
		}

		if !bytes.Equal(got, payload) {
			t.Fatalf("len %v: payload mismatch", l)
		}
	}
}
