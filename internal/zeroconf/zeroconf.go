// Package zeroconf advertises the bridge's HTTP API over mDNS/DNS-SD so
// home automation hosts can find it without configuration.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type the bridge registers under.
const ServiceType = "_lyngdorf._tcp"

// Service manages mDNS service registration.
type Service struct {
	mu     sync.Mutex
	name   string // instance name, usually the hostname
	port   int
	txt    map[string]string
	server *zeroconf.Server
}

// New creates a Service that will advertise port under the given instance
// name with the initial TXT record set.
func New(name string, port int, txt map[string]string) *Service {
	return &Service{
		name: name,
		port: port,
		txt:  maps.Clone(txt),
	}
}

// Records returns the TXT records as sorted key=value strings.
func (s *Service) Records() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return records(s.txt)
}

func records(txt map[string]string) []string {
	out := make([]string, 0, len(txt))
	for _, k := range slices.Sorted(maps.Keys(txt)) {
		out = append(out, k+"="+txt[k])
	}
	return out
}

// Start registers the service and blocks until ctx is cancelled, at which
// point it shuts the responder down.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	err := s.register()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	<-ctx.Done()

	s.mu.Lock()
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.mu.Unlock()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

// register must be called with s.mu held.
func (s *Service) register() error {
	txt := records(s.txt)
	server, err := zeroconf.Register(s.name, ServiceType, "local.", s.port, txt, nil)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service", "name", s.name, "port", s.port, "txt", txt)
	return nil
}

// SetTXT merges kv into the TXT records. A running registration is
// restarted to publish the change; before Start the values are only stored.
func (s *Service) SetTXT(kv map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for k, v := range kv {
		if s.txt[k] != v {
			if s.txt == nil {
				s.txt = make(map[string]string)
			}
			s.txt[k] = v
			changed = true
		}
	}
	if !changed || s.server == nil {
		return nil
	}
	// grandcat/zeroconf v1.0.0 has no live TXT update; re-register.
	s.server.Shutdown()
	s.server = nil
	return s.register()
}
