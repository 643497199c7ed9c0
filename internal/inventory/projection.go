package inventory

import (
	"github.com/atvirokodosprendimai/hostledger/internal/db"
	"github.com/atvirokodosprendimai/hostledger/internal/spec"
)

// project renders clients and all their descendants as nested views. Clients without
// computers and computers without ports are kept with empty collections.
func project(repo *db.Repo, clients []db.Client) ([]spec.ClientView, error) {
	views := make([]spec.ClientView, 0, len(clients))
	if len(clients) == 0 {
		return views, nil
	}

	clientIDs := make([]uint, 0, len(clients))
	for _, c := range clients {
		clientIDs = append(clientIDs, c.ID)
	}
	computers, err := repo.ComputersOf(clientIDs...)
	if err != nil {
		return nil, storageFault(err, "list computers")
	}

	computerIDs := make([]uint, 0, len(computers))
	for _, c := range computers {
		computerIDs = append(computerIDs, c.ID)
	}
	ports, err := repo.PortsOf(computerIDs...)
	if err != nil {
		return nil, storageFault(err, "list ports")
	}

	portsByComputer := make(map[uint]map[string]string, len(computers))
	for _, p := range ports {
		m, ok := portsByComputer[p.ComputerID]
		if !ok {
			m = make(map[string]string)
			portsByComputer[p.ComputerID] = m
		}
		m[p.PortNumber] = p.ServiceName
	}

	computersByClient := make(map[uint][]spec.ComputerView, len(clients))
	for _, c := range computers {
		portMap := portsByComputer[c.ID]
		if portMap == nil {
			portMap = map[string]string{}
		}
		computersByClient[c.ClientID] = append(computersByClient[c.ClientID], spec.ComputerView{
			IPAddress: c.IPAddress,
			Latency:   c.Latency,
			Hostname:  c.Hostname,
			Ports:     portMap,
		})
	}

	for _, c := range clients {
		cv := computersByClient[c.ID]
		if cv == nil {
			cv = []spec.ComputerView{}
		}
		views = append(views, spec.ClientView{Client: c.Name, Computers: cv})
	}
	return views, nil
}

func listClients(repo *db.Repo) ([]spec.ClientView, error) {
	clients, err := repo.ListClients()
	if err != nil {
		return nil, storageFault(err, "list clients")
	}
	return project(repo, clients)
}

func getClient(repo *db.Repo, name string) (spec.ClientView, error) {
	client, err := repo.FindClientByName(name)
	if err != nil {
		return spec.ClientView{}, storageFault(err, "look up client '%s'", name)
	}
	if client == nil {
		return spec.ClientView{}, notFound("client '%s' not found", name)
	}
	views, err := project(repo, []db.Client{*client})
	if err != nil {
		return spec.ClientView{}, err
	}
	return views[0], nil
}
