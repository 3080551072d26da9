// Package gps turns NMEA 0183 fixes from a serial GPS receiver into NMEA 2000
// GNSS position messages.
package gps

import (
	"bufio"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/pkg/errors"
	"github.com/simpleiot/n2kfast/n2k"
	"go.bug.st/serial"
)

// Gps reads NMEA 0183 sentences from a GPS receiver and turns position
// fixes into NMEA 2000 GNSS position messages
type Gps struct {
	portName string
	baud     int
	handler  func(n2k.GNSSPosition)
	debug    bool
	stop     chan struct{}
	stopOnce sync.Once

	portLock sync.Mutex
	port     io.ReadCloser

	sid  uint8
	date nmea.Date
}

// NewGps is used to create a new Gps type. handler is called for every fix.
func NewGps(portName string, baud int, handler func(n2k.GNSSPosition)) *Gps {
	return &Gps{
		portName: portName,
		baud:     baud,
		handler:  handler,
		stop:     make(chan struct{}),
	}
}

// SetDebug can be used to turn debugging on and off
func (gps *Gps) SetDebug(d bool) {
	gps.debug = d
}

// Run opens the port and processes sentences until stopped. If the port
// cannot be opened or fails, it is retried every 10 seconds.
func (gps *Gps) Run() error {
	for {
		port, err := serial.Open(gps.portName, &serial.Mode{BaudRate: gps.baud})
		if err != nil {
			if gps.debug {
				log.Println("GPS: failed to open port:", gps.portName, err)
			}
		} else {
			log.Println("GPS: port opened:", gps.portName)
			err = gps.Read(port)
			if err != nil {
				log.Println(errors.Wrap(err, "GPS: error reading port"))
			}
		}

		// delay a bit before trying to open port again
		select {
		case <-gps.stop:
			log.Println("GPS: stopped")
			return nil
		case <-time.After(10 * time.Second):
		}
	}
}

// Stop the GPS acquisition and close the port
func (gps *Gps) Stop(_ error) {
	gps.stopOnce.Do(func() {
		close(gps.stop)
		gps.portLock.Lock()
		if gps.port != nil {
			gps.port.Close()
		}
		gps.portLock.Unlock()
	})
}

// Read processes lines from port until it fails or is closed, then closes it
func (gps *Gps) Read(port io.ReadCloser) error {
	gps.portLock.Lock()
	select {
	case <-gps.stop:
		// stopped before the port was registered, Stop could not close it
		gps.portLock.Unlock()
		port.Close()
		return nil
	default:
	}
	gps.port = port
	gps.portLock.Unlock()

	defer func() {
		gps.portLock.Lock()
		gps.port.Close()
		gps.port = nil
		gps.portLock.Unlock()
	}()

	reader := bufio.NewReader(port)

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if gps.debug {
				log.Print("GPS: ", line)
			}
			if pos, ok := gps.ProcessLine(line); ok && gps.handler != nil {
				gps.handler(pos)
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			select {
			case <-gps.stop:
				return nil
			default:
				return err
			}
		}
	}
}

// ProcessLine parses one sentence. RMC sentences supply the date, GGA
// sentences produce a position.
func (gps *Gps) ProcessLine(line string) (n2k.GNSSPosition, bool) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		if gps.debug {
			log.Println("GPS: Error parsing GPS data:", err)
		}
		return n2k.GNSSPosition{}, false
	}

	switch s.DataType() {
	case nmea.TypeRMC:
		m := s.(nmea.RMC)
		if m.Date.Valid {
			gps.date = m.Date
		}

	case nmea.TypeGGA:
		m := s.(nmea.GGA)
		method, err := strconv.Atoi(m.FixQuality)
		if err != nil {
			method = n2k.MethodNoGNSS
		}

		ret := n2k.GNSSPosition{
			SID:               gps.sid,
			Time:              gps.fixTime(m.Time),
			Latitude:          m.Latitude,
			Longitude:         m.Longitude,
			Altitude:          m.Altitude,
			GNSSType:          n2k.GNSSTypeGPS,
			Method:            uint8(method),
			NumSatellites:     uint8(m.NumSatellites),
			HDOP:              m.HDOP,
			GeoidalSeparation: m.Separation,
		}
		gps.sid++
		return ret, true
	}

	return n2k.GNSSPosition{}, false
}

// fixTime combines the time of a fix with the last date seen. Until an RMC
// sentence arrives the current UTC date is used.
func (gps *Gps) fixTime(t nmea.Time) time.Time {
	var year, day int
	var month time.Month

	if gps.date.Valid {
		year = 2000 + gps.date.YY
		month = time.Month(gps.date.MM)
		day = gps.date.DD
	} else {
		year, month, day = time.Now().UTC().Date()
	}

	return time.Date(year, month, day, t.Hour, t.Minute, t.Second,
		t.Millisecond*int(time.Millisecond), time.UTC)
}
