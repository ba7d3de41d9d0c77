// Kunhua Huang 2026

package registry

import (
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ServiceInstance is one running bridge as seen by discovery clients.
type ServiceInstance struct {
	ID       string            `json:"id"`
	Service  string            `json:"service"`
	Version  string            `json:"version,omitempty"`
	Address  string            `json:"address"`
	Port     int               `json:"port"`
	Codec    string            `json:"codec,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Status   InstanceStatus    `json:"status"`

	RegisterTime time.Time `json:"register_time"`
	UpdateTime   time.Time `json:"update_time"`
}

type InstanceStatus int

const (
	StatusUnknown InstanceStatus = iota
	StatusUp
	StatusDown
	StatusStarting
)

func (s InstanceStatus) String() string {
	switch s {
	case StatusUp:
		return "UP"
	case StatusDown:
		return "DOWN"
	case StatusStarting:
		return "STARTING"
	default:
		return "UNKNOWN"
	}
}

func NewServiceInstance(service, address string, port int) *ServiceInstance {
	now := time.Now()
	return &ServiceInstance{
		ID:           service + "-" + uuid.NewString(),
		Service:      service,
		Address:      address,
		Port:         port,
		Metadata:     make(map[string]string),
		Status:       StatusUp,
		RegisterTime: now,
		UpdateTime:   now,
	}
}

func (si *ServiceInstance) Endpoint() string {
	return net.JoinHostPort(si.Address, strconv.Itoa(si.Port))
}

func (si *ServiceInstance) Clone() *ServiceInstance {
	c := *si
	c.Metadata = make(map[string]string, len(si.Metadata))
	for k, v := range si.Metadata {
		c.Metadata[k] = v
	}
	return &c
}
