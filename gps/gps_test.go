package gps

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/simpleiot/n2kfast/n2k"
	"github.com/simpleiot/n2kfast/test"
)

// sentence adds the $ prefix and checksum to an NMEA 0183 body
func sentence(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("$%v*%02X\r\n", body, cs)
}

const (
	testRMC = "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230323,003.1,W"
	testGGA = "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"
)

func TestProcessLine(t *testing.T) {
	gps := NewGps("", 0, nil)

	if _, ok := gps.ProcessLine(sentence(testRMC)); ok {
		t.Error("RMC should not produce a position")
	}

	pos, ok := gps.ProcessLine(sentence(testGGA))
	if !ok {
		t.Fatal("GGA did not produce a position")
	}

	if !pos.Time.Equal(time.Date(2023, 3, 23, 12, 35, 19, 0, time.UTC)) {
		t.Error("time: ", pos.Time)
	}

	if math.Abs(pos.Latitude-48.1173) > 1e-6 || math.Abs(pos.Longitude-11.516667) > 1e-6 {
		t.Errorf("position: %v %v", pos.Latitude, pos.Longitude)
	}

	if pos.Method != n2k.MethodGNSSFix || pos.NumSatellites != 8 || pos.HDOP != 0.9 {
		t.Errorf("fix: %+v", pos)
	}

	if pos.Altitude != 545.4 || pos.GeoidalSeparation != 46.9 {
		t.Errorf("altitude: %+v", pos)
	}

	pos2, _ := gps.ProcessLine(sentence(testGGA))
	if pos2.SID != pos.SID+1 {
		t.Error("SID should advance")
	}

	if _, ok := gps.ProcessLine("$GPGGA,garbage*00"); ok {
		t.Error("invalid sentence should be ignored")
	}
}

func TestRead(t *testing.T) {
	var got []n2k.GNSSPosition

	gps := NewGps("", 0, func(p n2k.GNSSPosition) {
		got = append(got, p)
	})

	a, b := test.NewIoSim()

	done := make(chan error)
	go func() {
		done <- gps.Read(b)
	}()

	input := strings.Join([]string{
		sentence(testRMC),
		"noise\r\n",
		sentence(testGGA),
		sentence(testGGA),
	}, "")

	a.Write([]byte(input))
	a.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal("read error: ", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not return")
	}

	if len(got) != 2 {
		t.Fatal("expected 2 positions, got: ", len(got))
	}

	if got[0].Time.Year() != 2023 {
		t.Error("date from RMC not applied: ", got[0].Time)
	}
}

func TestReadAfterStop(t *testing.T) {
	gps := NewGps("", 0, nil)
	gps.Stop(nil)

	a, b := test.NewIoSim()

	done := make(chan error)
	go func() {
		done <- gps.Read(b)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal("read error: ", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read blocked on a stopped GPS")
	}

	if _, err := a.Write([]byte("x")); err == nil {
		t.Error("port should be closed")
	}
}

func TestStopDuringRead(t *testing.T) {
	gps := NewGps("", 0, nil)

	_, b := test.NewIoSim()

	done := make(chan error)
	go func() {
		done <- gps.Read(b)
	}()

	// wait for Read to register the port
	for i := 0; ; i++ {
		gps.portLock.Lock()
		registered := gps.port != nil
		gps.portLock.Unlock()
		if registered {
			break
		}
		if i > 100 {
			t.Fatal("port never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	gps.Stop(nil)

	select {
	case err := <-done:
		if err != nil {
			t.Fatal("read error: ", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not end Read")
	}
}
