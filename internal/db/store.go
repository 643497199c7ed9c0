package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Store scopes inventory work to database transactions.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an opened database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InTx runs fn inside a single transaction. The transaction commits when fn returns
// nil and rolls back on any error or panic.
func (s *Store) InTx(ctx context.Context, fn func(r *Repo) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{tx: tx})
	})
}

// Repo exposes the storage operations available inside a transaction.
type Repo struct {
	tx *gorm.DB
}

// CascadeResult describes what a cascading client delete removed.
type CascadeResult struct {
	Computers []string
	Ports     int64
}

// FindClientByName returns nil without error when no client has that name.
func (r *Repo) FindClientByName(name string) (*Client, error) {
	return first[Client](r.tx.Where("name = ?", name))
}

// FindClientByID returns nil without error when the id is unknown.
func (r *Repo) FindClientByID(id uint) (*Client, error) {
	return first[Client](r.tx.Where("id = ?", id))
}

// FindComputerByIP looks the address up across all clients.
func (r *Repo) FindComputerByIP(ip string) (*Computer, error) {
	return first[Computer](r.tx.Where("ip_address = ?", ip))
}

// FindPort returns the port with the given number on a computer, or nil.
func (r *Repo) FindPort(computerID uint, number string) (*Port, error) {
	return first[Port](r.tx.Where("computer_id = ? AND port_number = ?", computerID, number))
}

// CreateClient inserts c and sets its ID.
func (r *Repo) CreateClient(c *Client) error {
	return r.tx.Create(c).Error
}

// CreateComputer inserts c and sets its ID.
func (r *Repo) CreateComputer(c *Computer) error {
	return r.tx.Create(c).Error
}

// CreatePort inserts p and sets its ID.
func (r *Repo) CreatePort(p *Port) error {
	return r.tx.Create(p).Error
}

// UpdateComputer writes only the given columns.
func (r *Repo) UpdateComputer(c *Computer, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.tx.Model(c).Updates(fields).Error
}

// UpdatePortService overwrites the service name of an existing port.
func (r *Repo) UpdatePortService(p *Port, service string) error {
	return r.tx.Model(p).Update("service_name", service).Error
}

// ListClients returns every client ordered by creation.
func (r *Repo) ListClients() ([]Client, error) {
	var clients []Client
	err := r.tx.Order("id").Find(&clients).Error
	return clients, err
}

// ComputersOf returns the computers owned by the given clients.
func (r *Repo) ComputersOf(clientIDs ...uint) ([]Computer, error) {
	var computers []Computer
	if len(clientIDs) == 0 {
		return computers, nil
	}
	err := r.tx.Where("client_id IN ?", clientIDs).Order("id").Find(&computers).Error
	return computers, err
}

// PortsOf returns the ports owned by the given computers.
func (r *Repo) PortsOf(computerIDs ...uint) ([]Port, error) {
	var ports []Port
	if len(computerIDs) == 0 {
		return ports, nil
	}
	err := r.tx.Where("computer_id IN ?", computerIDs).Order("id").Find(&ports).Error
	return ports, err
}

// DeleteClientCascade removes the client's ports, then its computers, then the client.
func (r *Repo) DeleteClientCascade(c *Client) (CascadeResult, error) {
	var res CascadeResult

	computers, err := r.ComputersOf(c.ID)
	if err != nil {
		return res, err
	}
	ids := make([]uint, 0, len(computers))
	for _, comp := range computers {
		ids = append(ids, comp.ID)
		res.Computers = append(res.Computers, comp.IPAddress)
	}

	if len(ids) > 0 {
		del := r.tx.Where("computer_id IN ?", ids).Delete(&Port{})
		if del.Error != nil {
			return res, del.Error
		}
		res.Ports = del.RowsAffected

		if err := r.tx.Where("client_id = ?", c.ID).Delete(&Computer{}).Error; err != nil {
			return res, err
		}
	}

	if err := r.tx.Delete(c).Error; err != nil {
		return res, err
	}
	return res, nil
}

func first[T any](q *gorm.DB) (*T, error) {
	var out T
	err := q.First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
