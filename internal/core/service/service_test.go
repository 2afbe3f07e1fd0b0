package service

import (
	"context"
	"encoding/hex"
	"net"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jttracker/internal/core/model"
	"jttracker/internal/core/repository"
	"jttracker/internal/observability"
	"jttracker/internal/protocol"
	"jttracker/internal/protocol/codec"
	"jttracker/internal/protocol/dispatcher"
)

const (
	taggedFrame = "7e020000437701912063450042000000000b0000000000000000000000000000000000" +
		"201118170522300114310100d401ffd50200a0da0300052cdb020389dc0400000000fd09026c0100000607008bd27e"
	fixedFrame = "243000123456190a002c18112017052222325148114086210745" + "5a000003e80901020304000055" +
		"0607008b1403000000" + "2a"
)

var remote = &net.TCPAddr{IP: net.IPv4(10, 1, 2, 3), Port: 50001}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]string)}
}

func (c *mapCache) LookupDevice(_ context.Context, uniqueID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[uniqueID]
	if ok {
		c.hits++
	}
	return id, ok
}

func (c *mapCache) StoreDevice(_ context.Context, uniqueID, deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uniqueID] = deviceID
}

func (c *mapCache) ForgetDevice(_ context.Context, uniqueID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uniqueID)
}

type recordingPublisher struct {
	published []*model.Position
	err       error
}

func (p *recordingPublisher) Publish(position *model.Position) error {
	p.published = append(p.published, position)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingReplier struct {
	payloads []string
}

func (r *recordingReplier) Reply(_ net.Addr, payload []byte) error {
	r.payloads = append(r.payloads, string(payload))
	return nil
}

type fixture struct {
	devices   DeviceService
	positions PositionService
	cache     *mapCache
	publisher *recordingPublisher
	posRepo   repository.PositionRepository
}

func newFixture(t *testing.T) *fixture {
	logger := zap.NewNop()
	cache := newMapCache()
	publisher := &recordingPublisher{}
	posRepo := repository.NewInMemoryPositionRepository()
	devices := NewDeviceService(repository.NewInMemoryDeviceRepository(), cache, logger)
	decoder := dispatcher.New(devices, logger, protocol.Options{HexDump: true})
	return &fixture{
		devices:   devices,
		positions: NewPositionService(posRepo, devices, decoder, publisher, logger),
		cache:     cache,
		publisher: publisher,
		posRepo:   posRepo,
	}
}

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestProcessTaggedFrame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device, err := f.devices.CreateDevice(ctx, "trailer 12", "770191206345", "jt707a")
	require.NoError(t, err)
	before := testutil.ToFloat64(observability.RecordsDecoded.WithLabelValues("jt707a"))

	position, err := f.positions.ProcessFrame(ctx, remote, mustHex(t, taggedFrame), nil)
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.Equal(t, device.ID, position.DeviceID)
	assert.Equal(t, 255, position.Attributes[model.KeyBatteryLevel])
	assert.Equal(t, taggedFrame, position.Attributes[model.KeyHexDump])
	assert.Equal(t, before+1, testutil.ToFloat64(observability.RecordsDecoded.WithLabelValues("jt707a")))

	latest, err := f.positions.GetLatestPosition(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, position.ID, latest.ID)
	assert.Equal(t, []*model.Position{position}, f.publisher.published)

	stored, err := f.devices.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusActive, stored.Status)
	assert.Equal(t, position.ID, stored.PositionID)
	assert.Equal(t, position.Timestamp, stored.LastUpdate)
	assert.Equal(t, remote.String(), stored.LastAddress)
}

func TestProcessFixedFrameAcknowledges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.devices.CreateDevice(ctx, "lock 3", "3000123456", "jt701d")
	require.NoError(t, err)
	acks := testutil.ToFloat64(observability.AcksSent)

	replier := &recordingReplier{}
	position, err := f.positions.ProcessFrame(ctx, remote, mustHex(t, fixedFrame), replier)
	require.NoError(t, err)
	assert.Equal(t, "jt701d", position.Protocol)
	assert.Equal(t, []string{"(P69,0,42)"}, replier.payloads)
	assert.Equal(t, acks+1, testutil.ToFloat64(observability.AcksSent))
}

func TestRegisteredIDWithLeadingZeroResolves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device, err := f.devices.CreateDevice(ctx, "lock 7", "0300012345", "jt701d")
	require.NoError(t, err)
	assert.Equal(t, "300012345", device.UniqueID)

	frame := mustHex(t, "24"+"0300012345"+fixedFrame[12:])
	replier := &recordingReplier{}
	position, err := f.positions.ProcessFrame(ctx, remote, frame, replier)
	require.NoError(t, err)
	assert.Equal(t, device.ID, position.DeviceID)
	assert.Equal(t, []string{"(P69,0,42)"}, replier.payloads)

	_, err = f.devices.CreateDevice(ctx, "lock 8", "300012345", "jt701d")
	assert.ErrorIs(t, err, repository.ErrDuplicateDevice)
}

func TestProcessFrameDrops(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.devices.CreateDevice(ctx, "trailer 12", "770191206345", "jt707a")
	require.NoError(t, err)

	tagged := mustHex(t, taggedFrame)
	tests := []struct {
		name   string
		data   []byte
		target error
		reason string
	}{
		{name: "unknown marker", data: []byte("hello"), target: protocol.ErrUnknownFrame, reason: observability.ReasonUnknownFrame},
		{name: "unknown device", data: mustHex(t, fixedFrame), target: protocol.ErrDeviceNotFound, reason: observability.ReasonUnknownDevice},
		{name: "truncated", data: tagged[:30], target: codec.ErrShortFrame, reason: observability.ReasonTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(observability.FramesDropped.WithLabelValues(tt.reason))
			replier := &recordingReplier{}

			position, err := f.positions.ProcessFrame(ctx, remote, tt.data, replier)
			assert.Nil(t, position)
			assert.True(t, errors.Is(err, tt.target), "%v", err)
			assert.Empty(t, replier.payloads)
			assert.Equal(t, before+1, testutil.ToFloat64(observability.FramesDropped.WithLabelValues(tt.reason)))
		})
	}

	assert.Empty(t, f.publisher.published)
}

func TestProcessFramePublishErrorKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publisher.err = errors.New("nats down")
	device, err := f.devices.CreateDevice(ctx, "trailer 12", "770191206345", "jt707a")
	require.NoError(t, err)

	position, err := f.positions.ProcessFrame(ctx, remote, mustHex(t, taggedFrame), nil)
	require.NoError(t, err)

	positions, err := f.positions.GetDevicePositions(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, []*model.Position{position}, positions)
}

func TestResolveUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device, err := f.devices.CreateDevice(ctx, "trailer 12", "770191206345", "jt707a")
	require.NoError(t, err)

	id, ok := f.devices.Resolve(ctx, remote, "770191206345")
	require.True(t, ok)
	assert.Equal(t, device.ID, id)
	assert.Equal(t, device.ID, f.cache.entries["770191206345"])
	assert.Zero(t, f.cache.hits)

	id, ok = f.devices.Resolve(ctx, remote, "770191206345")
	require.True(t, ok)
	assert.Equal(t, device.ID, id)
	assert.Equal(t, 1, f.cache.hits)

	require.NoError(t, f.devices.DeleteDevice(ctx, device.ID))
	assert.NotContains(t, f.cache.entries, "770191206345")
	_, ok = f.devices.Resolve(ctx, remote, "770191206345")
	assert.False(t, ok)
}

func TestDeviceServiceValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.devices.CreateDevice(ctx, "", "1", "jt701d")
	assert.Error(t, err)
	_, err = f.devices.CreateDevice(ctx, "x", "", "jt701d")
	assert.Error(t, err)
	_, err = f.devices.CreateDevice(ctx, "x", "86-ab", "jt701d")
	assert.Error(t, err)
	_, err = f.devices.CreateDevice(ctx, "x", "-12", "jt701d")
	assert.Error(t, err)

	_, err = f.devices.CreateDevice(ctx, "x", "1", "jt701d")
	require.NoError(t, err)
	_, err = f.devices.CreateDevice(ctx, "y", "1", "jt701d")
	assert.ErrorIs(t, err, repository.ErrDuplicateDevice)

	_, err = f.devices.GetDevice(ctx, "")
	assert.Error(t, err)
	assert.Error(t, f.devices.DeleteDevice(ctx, "missing"))

	all, err := f.devices.GetAllDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.positions.GetDevicePositions(ctx, "")
	assert.Error(t, err)
	_, err = f.positions.GetLatestPosition(ctx, "")
	assert.Error(t, err)
}
