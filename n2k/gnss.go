package n2k

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// GNSSPositionLen is the size of a PGN 129029 payload without reference
// station records
const GNSSPositionLen = 43

// ErrShortPayload is returned when a payload is smaller than its message
var ErrShortPayload = errors.New("payload too short")

// GNSS fix methods
const (
	MethodNoGNSS      = 0
	MethodGNSSFix     = 1
	MethodDGNSS       = 2
	MethodPreciseGNSS = 3
	MethodRTKFixed    = 4
	MethodRTKFloat    = 5
	MethodEstimated   = 6
	MethodManual      = 7
	MethodSimulate    = 8
)

// GNSS system types
const (
	GNSSTypeGPS     = 0
	GNSSTypeGLONASS = 1
	GNSSTypeGPSGLO  = 2
)

// GNSSPosition is PGN 129029, GNSS Position Data
type GNSSPosition struct {
	SID               uint8
	Time              time.Time
	Latitude          float64 // degrees, north positive
	Longitude         float64 // degrees, east positive
	Altitude          float64 // meters
	GNSSType          uint8
	Method            uint8
	Integrity         uint8
	NumSatellites     uint8
	HDOP              float64
	PDOP              float64
	GeoidalSeparation float64 // meters
}

// MarshalBinary encodes the position as a 43 byte payload
func (p GNSSPosition) MarshalBinary() ([]byte, error) {
	b := make([]byte, GNSSPositionLen)
	le := binary.LittleEndian

	t := p.Time.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	b[0] = p.SID
	le.PutUint16(b[1:], uint16(midnight.Unix()/86400))
	le.PutUint32(b[3:], uint32(t.Sub(midnight)/(100*time.Microsecond)))
	le.PutUint64(b[7:], uint64(int64(math.Round(p.Latitude*1e16))))
	le.PutUint64(b[15:], uint64(int64(math.Round(p.Longitude*1e16))))
	le.PutUint64(b[23:], uint64(int64(math.Round(p.Altitude*1e6))))
	b[31] = p.GNSSType&0x0F | p.Method<<4
	b[32] = p.Integrity&0x03 | 0xFC
	b[33] = p.NumSatellites
	le.PutUint16(b[34:], uint16(int16(math.Round(p.HDOP*100))))
	le.PutUint16(b[36:], uint16(int16(math.Round(p.PDOP*100))))
	le.PutUint32(b[38:], uint32(int32(math.Round(p.GeoidalSeparation*100))))
	b[42] = 0

	return b, nil
}

// UnmarshalBinary decodes a PGN 129029 payload. Reference station records
// are ignored.
func (p *GNSSPosition) UnmarshalBinary(b []byte) error {
	if len(b) < GNSSPositionLen {
		return ErrShortPayload
	}

	le := binary.LittleEndian

	days := int64(le.Uint16(b[1:]))
	ticks := time.Duration(le.Uint32(b[3:])) * 100 * time.Microsecond

	p.SID = b[0]
	p.Time = time.Unix(days*86400, 0).UTC().Add(ticks)
	p.Latitude = float64(int64(le.Uint64(b[7:]))) / 1e16
	p.Longitude = float64(int64(le.Uint64(b[15:]))) / 1e16
	p.Altitude = float64(int64(le.Uint64(b[23:]))) / 1e6
	p.GNSSType = b[31] & 0x0F
	p.Method = b[31] >> 4
	p.Integrity = b[32] & 0x03
	p.NumSatellites = b[33]
	p.HDOP = float64(int16(le.Uint16(b[34:]))) / 100
	p.PDOP = float64(int16(le.Uint16(b[36:]))) / 100
	p.GeoidalSeparation = float64(int32(le.Uint32(b[38:]))) / 100

	return nil
}

func (p GNSSPosition) String() string {
	return fmt.Sprintf("%v lat=%.6f lon=%.6f alt=%.1f sats=%v method=%v hdop=%.2f",
		p.Time.UTC().Format(time.RFC3339), p.Latitude, p.Longitude, p.Altitude,
		p.NumSatellites, p.Method, p.HDOP)
}
