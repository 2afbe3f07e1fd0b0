package jt701d

import (
	"net"
	"strconv"

	"go.uber.org/zap"

	"jttracker/internal/protocol"
)

// EncodeAck builds the reply confirming the frame with the given sequence
// number.
func EncodeAck(sequence uint8) []byte {
	return []byte("(P69,0," + strconv.Itoa(int(sequence)) + ")")
}

func (d *Decoder) sendResponse(replier protocol.Replier, remote net.Addr, sequence uint8) {
	if replier == nil {
		return
	}
	if err := replier.Reply(remote, EncodeAck(sequence)); err != nil {
		d.logger.Warn("jt701d ack not sent", zap.Uint8("sequence", sequence), zap.Error(err))
	}
}
