package dispatcher

import (
	"jttracker/internal/protocol/codec"
	"jttracker/internal/protocol/jt701d"
	"jttracker/internal/protocol/jt707a"
)

// Family identifies one tracker frame format.
type Family int

const (
	FamilyUnknown Family = iota
	// FamilyFixed frames carry every field at a fixed offset.
	FamilyFixed
	// FamilyTagged frames carry a fixed header followed by extension tags.
	FamilyTagged
)

type familyInfo struct {
	marker    byte
	protocol  string
	dateOrder codec.DateOrder
}

var families = map[Family]familyInfo{
	FamilyFixed: {
		marker:    jt701d.Marker,
		protocol:  jt701d.ProtocolName,
		dateOrder: jt701d.DateOrder,
	},
	FamilyTagged: {
		marker:    jt707a.Marker,
		protocol:  jt707a.ProtocolName,
		dateOrder: jt707a.DateOrder,
	},
}

// FamilyOf returns the family whose marker matches the first byte of a frame.
func FamilyOf(frame []byte) Family {
	if len(frame) == 0 {
		return FamilyUnknown
	}
	for f, info := range families {
		if info.marker == frame[0] {
			return f
		}
	}
	return FamilyUnknown
}

func (f Family) String() string {
	if info, ok := families[f]; ok {
		return info.protocol
	}
	return "unknown"
}

func (f Family) Marker() byte {
	return families[f].marker
}

// DateOrder is the timestamp digit order the family's decoder reads.
func (f Family) DateOrder() codec.DateOrder {
	return families[f].dateOrder
}
