package n2k

import "fmt"

// BroadcastAddress is the destination of PDU2 (broadcast) messages
const BroadcastAddress = 255

// ID is the content of a 29 bit NMEA 2000 CAN identifier
type ID struct {
	Priority    uint8
	PGN         uint32
	Source      uint8
	Destination uint8
}

// ParseID unpacks an extended CAN identifier. For PDU1 PGNs (PF < 240) the
// PS field is the destination address, otherwise it is part of the PGN and the
// destination is broadcast.
func ParseID(canID uint32) ID {
	id := ID{
		Priority: uint8((canID >> 26) & 0x7),
		Source:   uint8(canID & 0xFF),
	}

	dp := (canID >> 24) & 0x3
	pf := (canID >> 16) & 0xFF
	ps := (canID >> 8) & 0xFF

	if pf < 240 {
		id.PGN = dp<<16 | pf<<8
		id.Destination = uint8(ps)
	} else {
		id.PGN = dp<<16 | pf<<8 | ps
		id.Destination = BroadcastAddress
	}

	return id
}

// CANID packs the identifier into its 29 bit form
func (id ID) CANID() uint32 {
	dp := (id.PGN >> 16) & 0x3
	pf := (id.PGN >> 8) & 0xFF
	ps := id.PGN & 0xFF

	if pf < 240 {
		ps = uint32(id.Destination)
	}

	return uint32(id.Priority&0x7)<<26 | dp<<24 | pf<<16 | ps<<8 | uint32(id.Source)
}

// StreamKey identifies the fast-packet stream of a sender. Frames of one
// message always share source and PGN, and for PDU1 PGNs the destination,
// which takes the low byte the PGN leaves zero.
func (id ID) StreamKey() uint32 {
	key := uint32(id.Source)<<24 | id.PGN&0x3FFFF
	if id.PDU1() {
		key = key&^0xFF | uint32(id.Destination)
	}
	return key
}

// PDU1 is true for addressable PGNs
func (id ID) PDU1() bool {
	return (id.PGN>>8)&0xFF < 240
}

func (id ID) String() string {
	return fmt.Sprintf("pgn=%v src=%v dst=%v prio=%v", id.PGN, id.Source, id.Destination, id.Priority)
}
