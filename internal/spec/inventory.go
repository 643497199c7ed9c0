package spec

// ClientSpec is one entry of a bulk-create request: a client and every computer it owns,
// keyed by IP address.
type ClientSpec struct {
	Client    string                  `json:"client"`
	Computers map[string]ComputerSpec `json:"computers"`
}

// ComputerSpec describes a computer and its ports, keyed by port number.
type ComputerSpec struct {
	Latency  string            `json:"latency,omitempty"`
	Hostname string            `json:"hostname,omitempty"`
	Ports    map[string]string `json:"ports,omitempty"`
}

// ClientPatch is the body of a partial update. Computers are keyed by IP address.
type ClientPatch struct {
	Computers map[string]ComputerPatch `json:"computers"`
}

// ComputerPatch carries only the attributes to overwrite. A nil field leaves the
// stored value untouched.
type ComputerPatch struct {
	Latency  *string           `json:"latency,omitempty"`
	Hostname *string           `json:"hostname,omitempty"`
	Ports    map[string]string `json:"ports,omitempty"`
}

// ClientView is the read-side shape of a client.
type ClientView struct {
	Client    string         `json:"client"`
	Computers []ComputerView `json:"computers"`
}

// ComputerView is the read-side shape of a computer. Ports maps port number to service name.
type ComputerView struct {
	IPAddress string            `json:"ip_address"`
	Latency   string            `json:"latency"`
	Hostname  string            `json:"hostname"`
	Ports     map[string]string `json:"ports"`
}
