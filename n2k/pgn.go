package n2k

import (
	"github.com/simpleiot/n2kfast/fastpacket"
	"go.einride.tech/can"
)

// Well known PGNs
const (
	PGNISORequest         = 59904
	PGNProductInformation = 126996
	PGNPositionRapid      = 129025
	PGNGNSSPosition       = 129029
)

// standard PGNs that are sent as fast packets
var fastPacketPGNs = []uint32{
	126208, 126464, 126996, 126998,
	127233, 127237, 127489, 127496, 127497, 127498, 127503, 127504, 127506,
	127507, 127509, 127510, 127511, 127512, 127513, 127514,
	128275, 128520,
	129029, 129038, 129039, 129040, 129041, 129044, 129045, 129284, 129285,
	129301, 129302, 129538, 129540, 129541, 129542, 129545, 129547, 129549,
	129551, 129556,
	129792, 129793, 129794, 129795, 129796, 129797, 129798, 129799, 129800,
	129801, 129802, 129803, 129804, 129805, 129806, 129807, 129808, 129809,
	129810,
	130052, 130053, 130054, 130060, 130061, 130064, 130065, 130066, 130067,
	130068, 130069, 130070, 130071, 130072, 130073, 130074,
	130320, 130321, 130322, 130323, 130324, 130567, 130577, 130578,
}

// PGNSet is a set of PGNs that use the fast-packet transport
type PGNSet map[uint32]struct{}

// NewFastPacketSet returns the standard fast-packet PGNs plus any extra ones.
func NewFastPacketSet(extra ...uint32) PGNSet {
	s := make(PGNSet, len(fastPacketPGNs)+len(extra))
	for _, p := range fastPacketPGNs {
		s[p] = struct{}{}
	}
	for _, p := range extra {
		s[p] = struct{}{}
	}
	return s
}

// Register adds a PGN to the set
func (s PGNSet) Register(pgn uint32) {
	s[pgn] = struct{}{}
}

// IsFastPacket reports whether pgn is carried in fast packets. The
// proprietary fast-packet ranges are always included.
func (s PGNSet) IsFastPacket(pgn uint32) bool {
	if pgn == 126720 || (pgn >= 130816 && pgn <= 131071) {
		return true
	}
	_, ok := s[pgn]
	return ok
}

// Frames builds the CAN frames that carry payload for id. When fast is false
// the payload must fit in one frame and is sent as is.
func Frames(id ID, payload []byte, seq uint8, fast bool) ([]can.Frame, error) {
	canID := id.CANID()

	if !fast {
		if len(payload) > fastpacket.FrameLen {
			return nil, fastpacket.ErrFrameLength
		}
		f := can.Frame{ID: canID, IsExtended: true, Length: uint8(len(payload))}
		copy(f.Data[:], payload)
		return []can.Frame{f}, nil
	}

	msg, err := fastpacket.MessageFromPayload(payload, seq)
	if err != nil {
		return nil, err
	}

	ret := make([]can.Frame, 0, msg.NumFrames())
	for {
		fp, ok := msg.PopFrame()
		if !ok {
			break
		}
		ret = append(ret, can.Frame{
			ID:         canID,
			IsExtended: true,
			Length:     fastpacket.FrameLen,
			Data:       can.Data(fp.Bytes),
		})
	}

	return ret, nil
}
