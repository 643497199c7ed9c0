package db

import "time"

// Client is the top-level owner of a set of computers.
type Client struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Computer is a host record. Its IP address is unique across every client.
type Computer struct {
	ID        uint   `gorm:"primaryKey"`
	IPAddress string `gorm:"column:ip_address;uniqueIndex;not null"`
	Latency   string
	Hostname  string
	ClientID  uint    `gorm:"not null;index"`
	Client    *Client `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Port is a service exposed by a computer. The port number is unique per computer,
// so two computers may expose the same number independently.
type Port struct {
	ID          uint      `gorm:"primaryKey"`
	ComputerID  uint      `gorm:"not null;uniqueIndex:idx_ports_identity"`
	Computer    *Computer `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	PortNumber  string    `gorm:"not null;uniqueIndex:idx_ports_identity"`
	ServiceName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
