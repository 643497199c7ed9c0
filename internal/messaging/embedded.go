package messaging

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// StartEmbedded runs an in-process NATS server bound to addr (host:port). A port of -1
// picks a random free port.
func StartEmbedded(addr string) (*server.Server, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid nats address %q: %w", addr, err)
	}
	portInt, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid nats port %q: %w", port, err)
	}

	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   portInt,
		NoSigs: true,
		NoLog:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create embedded NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server did not become ready")
	}
	return ns, nil
}
