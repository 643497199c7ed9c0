package inventory

import "github.com/atvirokodosprendimai/hostledger/internal/db"

// deleteClient removes a client together with every computer and port beneath it.
func deleteClient(repo *db.Repo, name string) (Change, error) {
	change := Change{Op: OpDeleted, Client: name}

	client, err := repo.FindClientByName(name)
	if err != nil {
		return change, storageFault(err, "look up client '%s'", name)
	}
	if client == nil {
		return change, notFound("client '%s' not found", name)
	}

	res, err := repo.DeleteClientCascade(client)
	if err != nil {
		return change, storageFault(err, "delete client '%s'", name)
	}
	change.Computers = res.Computers
	change.Ports = res.Ports
	return change, nil
}
