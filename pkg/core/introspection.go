package core

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	ClientID    string `json:"client_id"`
	Status      Status `json:"status"`
	Notes       int    `json:"notes"`
	Watchers    int    `json:"watchers"`
	Inflight    int64  `json:"inflight_mutations"`
	Subscribed  bool   `json:"subscribed"`
	BackendType string `json:"backend_type"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	backendType := "unknown"
	if comp, ok := s.backend.(introspection.Component); ok {
		backendType = comp.ComponentType()
	}

	return StoreState{
		ClientID:    string(s.session),
		Status:      s.state.Status(),
		Notes:       len(s.state.Notes),
		Watchers:    len(s.watchers),
		Inflight:    s.inflightCount.Load(),
		Subscribed:  s.sub != nil,
		BackendType: backendType,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
