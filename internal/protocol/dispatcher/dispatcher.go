// Package dispatcher routes a raw frame to the decoder of its family by
// looking at the first byte only.
package dispatcher

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jttracker/internal/core/model"
	"jttracker/internal/protocol"
	"jttracker/internal/protocol/jt701d"
	"jttracker/internal/protocol/jt707a"
)

type Dispatcher struct {
	decoders map[Family]protocol.Decoder
}

// New builds a dispatcher with a decoder for every known family, all sharing
// one resolver.
func New(resolver protocol.DeviceResolver, logger *zap.Logger, opts protocol.Options) *Dispatcher {
	return &Dispatcher{
		decoders: map[Family]protocol.Decoder{
			FamilyFixed:  jt701d.NewDecoder(resolver, logger, opts),
			FamilyTagged: jt707a.NewDecoder(resolver, logger, opts),
		},
	}
}

// Decode implements protocol.Decoder. Frames with an unknown marker fail
// with protocol.ErrUnknownFrame.
func (d *Dispatcher) Decode(ctx context.Context, remote net.Addr, frame []byte, replier protocol.Replier) (*model.Position, error) {
	family := FamilyOf(frame)
	decoder, ok := d.decoders[family]
	if !ok {
		if len(frame) == 0 {
			return nil, errors.Wrap(protocol.ErrUnknownFrame, "empty frame")
		}
		return nil, errors.Wrapf(protocol.ErrUnknownFrame, "marker 0x%02x", frame[0])
	}
	return decoder.Decode(ctx, remote, frame, replier)
}
