package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/hostledger/internal/inventory"
	"github.com/atvirokodosprendimai/hostledger/internal/messaging"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Service applies inventory reports received over NATS.
type Service struct {
	nc      *nats.Conn
	inv     *inventory.Service
	logger  *zap.Logger
	timeout time.Duration
	subs    []*nats.Subscription
}

// NewService creates a new ingest service.
func NewService(nc *nats.Conn, inv *inventory.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		nc:      nc,
		inv:     inv,
		logger:  logger,
		timeout: defaultTimeout,
	}
}

// Start subscribes to the report subjects.
func (s *Service) Start() error {
	s.logger.Info("starting report ingest",
		zap.String("create", messaging.SubjectReportCreate),
		zap.String("update", messaging.SubjectReportUpdate))

	handlers := map[string]nats.MsgHandler{
		messaging.SubjectReportCreate: s.handleCreate,
		messaging.SubjectReportUpdate: s.handleUpdate,
	}
	for subject, handler := range handlers {
		sub, err := s.nc.Subscribe(subject, handler)
		if err != nil {
			s.Stop()
			return fmt.Errorf("subscribe to %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Stop removes the subscriptions.
func (s *Service) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.subs = nil
	s.logger.Info("stopped report ingest")
}

func (s *Service) handleCreate(m *nats.Msg) {
	var report messaging.CreateReport
	if err := json.Unmarshal(m.Data, &report); err != nil {
		s.reject(m, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.inv.CreateClients(ctx, report)
	s.respond(m, err, "Clients and computers created successfully")
}

func (s *Service) handleUpdate(m *nats.Msg) {
	var report messaging.UpdateReport
	if err := json.Unmarshal(m.Data, &report); err != nil {
		s.reject(m, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.inv.UpdateClient(ctx, report.Client, report.ClientPatch)
	s.respond(m, err, fmt.Sprintf("Client '%s' updated successfully", report.Client))
}

func (s *Service) reject(m *nats.Msg, err error) {
	s.logger.Warn("malformed inventory report", zap.String("subject", m.Subject), zap.Error(err))
	s.respond(m, &inventory.Fault{Kind: inventory.KindInvalidInput, Message: "invalid data format", Err: err}, "")
}

func (s *Service) respond(m *nats.Msg, err error, ok string) {
	if m.Reply == "" {
		return
	}
	reply := messaging.Reply{Message: ok}
	if err != nil {
		reply = messaging.Reply{Error: string(inventory.KindOf(err)), Message: err.Error()}
	}
	data, merr := json.Marshal(reply)
	if merr != nil {
		s.logger.Error("marshal report reply", zap.Error(merr))
		return
	}
	if rerr := m.Respond(data); rerr != nil {
		s.logger.Warn("reply to report failed", zap.String("subject", m.Subject), zap.Error(rerr))
	}
}
