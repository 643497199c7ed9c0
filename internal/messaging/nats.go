package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/atvirokodosprendimai/hostledger/internal/inventory"
	"github.com/atvirokodosprendimai/hostledger/internal/spec"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// SubjectClientCreated is published after a client tree is created.
	SubjectClientCreated = "inventory.client.created"
	// SubjectClientUpdated is published after a client is patched.
	SubjectClientUpdated = "inventory.client.updated"
	// SubjectClientDeleted is published after a client and its subtree are removed.
	SubjectClientDeleted = "inventory.client.deleted"
	// SubjectReportCreate carries bulk-create reports from agents.
	SubjectReportCreate = "inventory.reports.create"
	// SubjectReportUpdate carries partial-update reports from agents.
	SubjectReportUpdate = "inventory.reports.update"
)

// Event is the message published for every committed inventory change.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Client    string    `json:"client"`
	Computers []string  `json:"computers,omitempty"`
	Ports     int64     `json:"ports,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateReport is the payload of SubjectReportCreate.
type CreateReport []spec.ClientSpec

// UpdateReport is the payload of SubjectReportUpdate.
type UpdateReport struct {
	Client string `json:"client"`
	spec.ClientPatch
}

// Reply answers a report sent with a reply subject.
type Reply struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubjectFor returns the event subject for a change operation.
func SubjectFor(op inventory.Op) string {
	switch op {
	case inventory.OpCreated:
		return SubjectClientCreated
	case inventory.OpDeleted:
		return SubjectClientDeleted
	default:
		return SubjectClientUpdated
	}
}

// Connect establishes a connection to a NATS server.
func Connect(natsURL, name string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
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
		return nil, err
	}
	logger.Info("connected to NATS server", zap.String("url", natsURL))
	return nc, nil
}

// Publisher publishes inventory changes as events.
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
	now    func() time.Time
}

// NewPublisher returns a Publisher that implements inventory.Notifier.
func NewPublisher(nc *nats.Conn, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, logger: logger, now: time.Now}
}

// Notify publishes the change. Failures are logged; the change is already committed.
func (p *Publisher) Notify(_ context.Context, change inventory.Change) {
	subject := SubjectFor(change.Op)
	evt := Event{
		ID:        uuid.NewString(),
		Type:      subject,
		Client:    change.Client,
		Computers: change.Computers,
		Ports:     change.Ports,
		Timestamp: p.now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("marshal inventory event", zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("publish inventory event failed",
			zap.String("subject", subject),
			zap.String("client", change.Client),
			zap.Error(err))
		return
	}
	p.logger.Debug("published inventory event", zap.String("subject", subject), zap.String("id", evt.ID))
}
