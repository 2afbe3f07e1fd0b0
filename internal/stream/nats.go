// Package stream fans decoded position records out to other services.
package stream

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jttracker/internal/core/model"
)

// Publisher hands one stored record to downstream consumers.
type Publisher interface {
	Publish(position *model.Position) error
	Close() error
}

// NATSPublisher publishes records as JSON on <subject>.<protocol>.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewNATSPublisher(url, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("jttracker"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to nats %s", url)
	}
	logger.Info("nats publisher connected", zap.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

func (p *NATSPublisher) Subject(position *model.Position) string {
	return p.subject + "." + position.Protocol
}

func (p *NATSPublisher) Publish(position *model.Position) error {
	data, err := json.Marshal(position)
	if err != nil {
		return errors.Wrap(err, "encode position")
	}
	if err := p.conn.Publish(p.Subject(position), data); err != nil {
		return errors.Wrap(err, "publish position")
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Discard is used when no stream is configured.
type Discard struct{}

func (Discard) Publish(*model.Position) error { return nil }
func (Discard) Close() error                  { return nil }
