// Package protocol defines the contracts between the tracker frame decoders
// and the collaborators around them.
package protocol

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"jttracker/internal/core/model"
)

var (
	// ErrUnknownFrame means no decoder claims the frame's marker byte.
	ErrUnknownFrame = errors.New("unrecognized frame")
	// ErrDeviceNotFound means the frame's device identifier did not resolve.
	ErrDeviceNotFound = errors.New("unknown device")
)

// DeviceResolver maps the identifier carried in a frame to an internal
// device id. ok is false when the device is not registered.
type DeviceResolver interface {
	Resolve(ctx context.Context, remote net.Addr, uniqueID string) (deviceID string, ok bool)
}

// Replier sends a reply frame back to the endpoint a frame came from.
type Replier interface {
	Reply(remote net.Addr, payload []byte) error
}

// Decoder turns exactly one frame into a position record. A nil record is
// always paired with a non-nil error.
type Decoder interface {
	Decode(ctx context.Context, remote net.Addr, frame []byte, replier Replier) (*model.Position, error)
}

// NormalizeUniqueID turns the decimal digits of a device identifier into the
// key devices are registered under: leading zeros dropped, all zeros kept as
// "0". Anything but decimal digits is rejected.
func NormalizeUniqueID(digits string) (string, error) {
	digits = strings.TrimSpace(digits)
	id, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return "", errors.Errorf("device identifier %q is not a decimal number", digits)
	}
	return strconv.FormatUint(id, 10), nil
}

// ResolverFunc adapts a function to DeviceResolver.
type ResolverFunc func(ctx context.Context, remote net.Addr, uniqueID string) (string, bool)

func (f ResolverFunc) Resolve(ctx context.Context, remote net.Addr, uniqueID string) (string, bool) {
	return f(ctx, remote, uniqueID)
}

// Options tunes what the decoders attach to a record beyond the decoded
// fields.
type Options struct {
	// HexDump stores the whole frame as lowercase hex under model.KeyHexDump.
	HexDump bool
}
