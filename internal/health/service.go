package health

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service tracks the last observed state of each upstream.
// All state is in-memory and resets on application restart.
type Service struct {
	items  map[string]*HealthItem
	mu     sync.RWMutex
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a new health service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		items:  make(map[string]*HealthItem),
		now:    time.Now,
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// RegisterItem adds an upstream in the OK state. Registering twice is a no-op.
func (s *Service) RegisterItem(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return
	}
	s.items[id] = &HealthItem{ID: id, Name: name, Status: StatusOK}
}

// SetError marks an upstream as failing.
func (s *Service) SetError(id, message string) {
	s.setStatus(id, StatusError, message)
}

// SetWarning marks an upstream as degraded.
func (s *Service) SetWarning(id, message string) {
	s.setStatus(id, StatusWarning, message)
}

// ClearStatus marks an upstream as healthy.
func (s *Service) ClearStatus(id string) {
	s.setStatus(id, StatusOK, "")
}

func (s *Service) setStatus(id string, status HealthStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		s.logger.Warn().Str("id", id).Msg("Attempted to update status for unregistered item")
		return
	}

	if item.Status == status && item.Message == message {
		return
	}

	oldStatus := item.Status
	item.Status = status
	item.Message = message

	if status != StatusOK {
		now := s.now()
		item.Timestamp = &now
	} else {
		item.Timestamp = nil
	}

	// Repeated failures only differ in message, log transitions once.
	if oldStatus != status {
		s.logger.Info().
			Str("id", id).
			Str("name", item.Name).
			Str("oldStatus", string(oldStatus)).
			Str("newStatus", string(status)).
			Str("message", message).
			Msg("Health status changed")
	}
}

// GetItem returns a copy of one item, or nil when it is not registered.
func (s *Service) GetItem(id string) *HealthItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		c := *item
		return &c
	}
	return nil
}

// IsHealthy reports whether an item is registered and OK.
func (s *Service) IsHealthy(id string) bool {
	item := s.GetItem(id)
	return item != nil && item.Status == StatusOK
}

// GetAll returns every item ordered by id, with "degraded" as the overall
// status when any item is not OK.
func (s *Service) GetAll() *HealthResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := &HealthResponse{Status: "ok", Upstreams: make([]HealthItem, 0, len(s.items))}
	for _, item := range s.items {
		resp.Upstreams = append(resp.Upstreams, *item)
		if item.Status != StatusOK {
			resp.Status = "degraded"
		}
	}
	sort.Slice(resp.Upstreams, func(i, j int) bool { return resp.Upstreams[i].ID < resp.Upstreams[j].ID })
	return resp
}
