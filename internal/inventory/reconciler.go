package inventory

import (
	"maps"
	"slices"
	"strings"

	"github.com/atvirokodosprendimai/hostledger/internal/db"
	"github.com/atvirokodosprendimai/hostledger/internal/spec"
)

// createClients inserts every entry as a new client with its computers and ports.
// The caller owns the transaction, so any fault discards the whole batch.
func createClients(repo *db.Repo, entries []spec.ClientSpec) ([]Change, error) {
	changes := make([]Change, 0, len(entries))
	for i, entry := range entries {
		if strings.TrimSpace(entry.Client) == "" || len(entry.Computers) == 0 {
			return nil, invalidInput("entry %d: client name and computers are required", i)
		}

		existing, err := repo.FindClientByName(entry.Client)
		if err != nil {
			return nil, storageFault(err, "look up client '%s'", entry.Client)
		}
		if existing != nil {
			return nil, conflict("client '%s' already exists", entry.Client)
		}

		client := &db.Client{Name: entry.Client}
		if err := repo.CreateClient(client); err != nil {
			return nil, storageFault(err, "create client '%s'", entry.Client)
		}

		change := Change{Op: OpCreated, Client: client.Name}
		for _, ip := range slices.Sorted(maps.Keys(entry.Computers)) {
			c := entry.Computers[ip]
			if err := createComputer(repo, client, ip, c.Latency, c.Hostname, c.Ports); err != nil {
				return nil, err
			}
			change.Computers = append(change.Computers, ip)
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// updateClient merges patch into the existing client named name. Computers are matched
// by IP address and ports by number; anything not named in the patch is left alone.
func updateClient(repo *db.Repo, name string, patch spec.ClientPatch) (Change, error) {
	change := Change{Op: OpUpdated, Client: name}

	client, err := repo.FindClientByName(name)
	if err != nil {
		return change, storageFault(err, "look up client '%s'", name)
	}
	if client == nil {
		return change, notFound("client '%s' not found", name)
	}

	for _, ip := range slices.Sorted(maps.Keys(patch.Computers)) {
		p := patch.Computers[ip]
		if err := mergeComputer(repo, client, ip, p); err != nil {
			return change, err
		}
		change.Computers = append(change.Computers, ip)
	}
	return change, nil
}

func mergeComputer(repo *db.Repo, client *db.Client, ip string, p spec.ComputerPatch) error {
	if strings.TrimSpace(ip) == "" {
		return invalidInput("client '%s': computer ip address is empty", client.Name)
	}

	computer, err := repo.FindComputerByIP(ip)
	if err != nil {
		return storageFault(err, "look up computer %s", ip)
	}
	if computer == nil {
		return insertComputer(repo, client, ip, deref(p.Latency), deref(p.Hostname), p.Ports)
	}
	if computer.ClientID != client.ID {
		return ownedElsewhere(repo, ip, computer.ClientID)
	}

	fields := make(map[string]any, 2)
	if p.Latency != nil {
		fields["latency"] = *p.Latency
	}
	if p.Hostname != nil {
		fields["hostname"] = *p.Hostname
	}
	if err := repo.UpdateComputer(computer, fields); err != nil {
		return storageFault(err, "update computer %s", ip)
	}
	return upsertPorts(repo, computer, p.Ports)
}

func createComputer(repo *db.Repo, client *db.Client, ip, latency, hostname string, ports map[string]string) error {
	if strings.TrimSpace(ip) == "" {
		return invalidInput("client '%s': computer ip address is empty", client.Name)
	}

	existing, err := repo.FindComputerByIP(ip)
	if err != nil {
		return storageFault(err, "look up computer %s", ip)
	}
	if existing != nil {
		return ownedElsewhere(repo, ip, existing.ClientID)
	}
	return insertComputer(repo, client, ip, latency, hostname, ports)
}

// insertComputer assumes the caller has checked ip is not taken.
func insertComputer(repo *db.Repo, client *db.Client, ip, latency, hostname string, ports map[string]string) error {
	computer := &db.Computer{
		IPAddress: ip,
		Latency:   latency,
		Hostname:  hostname,
		ClientID:  client.ID,
	}
	if err := repo.CreateComputer(computer); err != nil {
		return storageFault(err, "create computer %s for client '%s'", ip, client.Name)
	}
	return upsertPorts(repo, computer, ports)
}

// upsertPorts creates missing ports and overwrites the service name of existing ones.
func upsertPorts(repo *db.Repo, computer *db.Computer, ports map[string]string) error {
	for _, number := range slices.Sorted(maps.Keys(ports)) {
		service := ports[number]
		if strings.TrimSpace(number) == "" {
			return invalidInput("computer %s: port number is empty", computer.IPAddress)
		}

		port, err := repo.FindPort(computer.ID, number)
		if err != nil {
			return storageFault(err, "look up port %s on %s", number, computer.IPAddress)
		}
		if port == nil {
			port = &db.Port{ComputerID: computer.ID, PortNumber: number, ServiceName: service}
			if err := repo.CreatePort(port); err != nil {
				return storageFault(err, "create port %s on %s", number, computer.IPAddress)
			}
			continue
		}
		if port.ServiceName == service {
			continue
		}
		if err := repo.UpdatePortService(port, service); err != nil {
			return storageFault(err, "update port %s on %s", number, computer.IPAddress)
		}
	}
	return nil
}

func ownedElsewhere(repo *db.Repo, ip string, ownerID uint) error {
	owner, err := repo.FindClientByID(ownerID)
	if err != nil {
		return storageFault(err, "look up owner of computer %s", ip)
	}
	if owner == nil {
		return conflict("computer %s already exists", ip)
	}
	return conflict("computer %s already belongs to client '%s'", ip, owner.Name)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
