package inventory

import (
	"context"

	"github.com/atvirokodosprendimai/hostledger/internal/db"
	"github.com/atvirokodosprendimai/hostledger/internal/spec"
	"go.uber.org/zap"
)

// Op names the kind of change a committed operation made.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change describes one committed modification of a client subtree.
type Change struct {
	Op        Op
	Client    string
	Computers []string
	Ports     int64
}

// Notifier is told about changes after they are committed.
type Notifier interface {
	Notify(ctx context.Context, change Change)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Change) {}

// Service is the entry point for reading and modifying the client inventory.
// Every call runs in its own transaction.
type Service struct {
	store    *db.Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a new inventory service. notifier and logger may be nil.
func NewService(store *db.Store, notifier Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// CreateClients creates every client in entries, or none of them.
func (s *Service) CreateClients(ctx context.Context, entries []spec.ClientSpec) error {
	var changes []Change
	err := s.store.InTx(ctx, func(repo *db.Repo) error {
		var err error
		changes, err = createClients(repo, entries)
		return err
	})
	if err != nil {
		return s.fail("create clients", err)
	}

	for _, c := range changes {
		s.logger.Info("client created", zap.String("client", c.Client), zap.Int("computers", len(c.Computers)))
		s.notifier.Notify(ctx, c)
	}
	return nil
}

// UpdateClient merges patch into an existing client.
func (s *Service) UpdateClient(ctx context.Context, name string, patch spec.ClientPatch) error {
	var change Change
	err := s.store.InTx(ctx, func(repo *db.Repo) error {
		var err error
		change, err = updateClient(repo, name, patch)
		return err
	})
	if err != nil {
		return s.fail("update client", err, zap.String("client", name))
	}

	s.logger.Info("client updated", zap.String("client", name), zap.Strings("computers", change.Computers))
	s.notifier.Notify(ctx, change)
	return nil
}

// DeleteClient removes a client and everything it owns.
func (s *Service) DeleteClient(ctx context.Context, name string) error {
	var change Change
	err := s.store.InTx(ctx, func(repo *db.Repo) error {
		var err error
		change, err = deleteClient(repo, name)
		return err
	})
	if err != nil {
		return s.fail("delete client", err, zap.String("client", name))
	}

	s.logger.Info("client deleted",
		zap.String("client", name),
		zap.Int("computers", len(change.Computers)),
		zap.Int64("ports", change.Ports))
	s.notifier.Notify(ctx, change)
	return nil
}

// ListClients returns the whole inventory. The result is empty, not nil, when there are no clients.
func (s *Service) ListClients(ctx context.Context) ([]spec.ClientView, error) {
	var views []spec.ClientView
	err := s.store.InTx(ctx, func(repo *db.Repo) error {
		var err error
		views, err = listClients(repo)
		return err
	})
	if err != nil {
		return nil, s.fail("list clients", err)
	}
	return views, nil
}

// GetClient returns a single client tree.
func (s *Service) GetClient(ctx context.Context, name string) (spec.ClientView, error) {
	var view spec.ClientView
	err := s.store.InTx(ctx, func(repo *db.Repo) error {
		var err error
		view, err = getClient(repo, name)
		return err
	})
	if err != nil {
		return spec.ClientView{}, s.fail("get client", err, zap.String("client", name))
	}
	return view, nil
}

func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	err = storageFault(err, "%s", op)
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if KindOf(err) == KindStorageFailure {
		s.logger.Error("inventory operation failed", fields...)
	} else {
		s.logger.Warn("inventory operation rejected", fields...)
	}
	return err
}
