// Package memory provides in-memory storage implementations for tests and
// local experimentation. All stores are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/order"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/slaclock"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
)

// OrderStore is an in-memory storage.OrderStore. Saves append their events
// to the journal the store was built with.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]order.Order
	journal *EventStore
}

// NewOrderStore creates an empty order store appending to journal. A nil
// journal is fine for tests that never save events.
func NewOrderStore(journal *EventStore) *OrderStore {
	return &OrderStore{orders: make(map[string]order.Order), journal: journal}
}

func (s *OrderStore) PutOrder(ctx context.Context, ord *order.Order, evts []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.orders[ord.ID]
	if err := checkVersion(exists, stored.Version, ord.Version); err != nil {
		return err
	}
	if err := appendToJournal(ctx, s.journal, evts); err != nil {
		return err
	}
	ord.Version++
	s.orders[ord.ID] = *ord
	return nil
}

func (s *OrderStore) GetOrder(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &stored, nil
}

// ServiceStore is an in-memory storage.ServiceStore.
type ServiceStore struct {
	mu       sync.RWMutex
	services map[string]service.Service
	journal  *EventStore
}

// NewServiceStore creates an empty service store appending to journal.
func NewServiceStore(journal *EventStore) *ServiceStore {
	return &ServiceStore{services: make(map[string]service.Service), journal: journal}
}

func (s *ServiceStore) PutService(ctx context.Context, svc *service.Service, evts []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.services[svc.ID]
	if err := checkVersion(exists, stored.Version, svc.Version); err != nil {
		return err
	}
	if err := appendToJournal(ctx, s.journal, evts); err != nil {
		return err
	}
	svc.Version++
	s.services[svc.ID] = *svc
	return nil
}

func (s *ServiceStore) GetService(_ context.Context, id string) (*service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.services[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &stored, nil
}

func (s *ServiceStore) GetServiceByVendorReference(_ context.Context, vendorCode, vendorReferenceID string) (*service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stored := range s.services {
		if stored.VendorCode == vendorCode && stored.VendorReferenceID == vendorReferenceID {
			found := stored
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *ServiceStore) ListServicesByOrder(_ context.Context, orderID string) ([]*service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var services []*service.Service
	for _, stored := range s.services {
		if stored.OrderID == orderID {
			found := stored
			services = append(services, &found)
		}
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	return services, nil
}

// SlaClockStore is an in-memory storage.SlaClockStore.
type SlaClockStore struct {
	mu      sync.RWMutex
	clocks  map[string]slaclock.Clock
	journal *EventStore
}

// NewSlaClockStore creates an empty clock store appending to journal.
func NewSlaClockStore(journal *EventStore) *SlaClockStore {
	return &SlaClockStore{clocks: make(map[string]slaclock.Clock), journal: journal}
}

func (s *SlaClockStore) PutSlaClock(ctx context.Context, clock *slaclock.Clock, evts []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.clocks[clock.ID]
	if err := checkVersion(exists, stored.Version, clock.Version); err != nil {
		return err
	}
	if err := appendToJournal(ctx, s.journal, evts); err != nil {
		return err
	}
	clock.Version++
	s.clocks[clock.ID] = *clock
	return nil
}

func (s *SlaClockStore) GetSlaClock(_ context.Context, id string) (*slaclock.Clock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.clocks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &stored, nil
}

func (s *SlaClockStore) GetSlaClockByOrder(_ context.Context, orderID string, kind slaclock.Kind) (*slaclock.Clock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stored := range s.clocks {
		if stored.OrderID == orderID && stored.Kind == kind {
			found := stored
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *SlaClockStore) ListUnresolvedSlaClocks(_ context.Context) ([]*slaclock.Clock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var clocks []*slaclock.Clock
	for _, stored := range s.clocks {
		if stored.State == slaclock.StateRunning || stored.State == slaclock.StateAtRisk {
			found := stored
			clocks = append(clocks, &found)
		}
	}
	sort.Slice(clocks, func(i, j int) bool { return clocks[i].ID < clocks[j].ID })
	return clocks, nil
}

// EventStore is an in-memory storage.EventStore.
type EventStore struct {
	mu        sync.RWMutex
	events    []event.Event
	globalSeq uint64
	streamSeq map[string]uint64
}

// NewEventStore creates an empty journal.
func NewEventStore() *EventStore {
	return &EventStore{streamSeq: make(map[string]uint64)}
}

func (s *EventStore) AppendEvents(_ context.Context, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		streamKey := string(ev.StreamType) + "/" + ev.StreamID
		s.streamSeq[streamKey]++
		s.globalSeq++
		ev.Seq = s.streamSeq[streamKey]
		ev.GlobalSeq = s.globalSeq
		s.events = append(s.events, ev)
	}
	return nil
}

func (s *EventStore) ListEventsAfter(_ context.Context, afterGlobalSeq uint64, limit int) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []event.Event
	for _, ev := range s.events {
		if ev.GlobalSeq <= afterGlobalSeq {
			continue
		}
		events = append(events, ev)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

// CheckpointStore is an in-memory storage.CheckpointStore.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]storage.Checkpoint
}

// NewCheckpointStore creates an empty checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{checkpoints: make(map[string]storage.Checkpoint)}
}

func (s *CheckpointStore) GetCheckpoint(_ context.Context, projection string) (storage.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checkpoint, ok := s.checkpoints[projection]
	return checkpoint, ok, nil
}

func (s *CheckpointStore) SaveCheckpoint(_ context.Context, checkpoint storage.Checkpoint) error {
	if checkpoint.Projection == "" {
		return fmt.Errorf("checkpoint projection name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[checkpoint.Projection] = checkpoint
	return nil
}

func (s *CheckpointStore) ClearCheckpoint(_ context.Context, projection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints, projection)
	return nil
}

// HolidayStore is an in-memory storage.HolidayStore.
type HolidayStore struct {
	mu       sync.RWMutex
	holidays map[string]map[string]struct{}
}

// NewHolidayStore creates an empty holiday store.
func NewHolidayStore() *HolidayStore {
	return &HolidayStore{holidays: make(map[string]map[string]struct{})}
}

func (s *HolidayStore) ListHolidaysForTenant(_ context.Context, tenantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[string]struct{})
	for date := range s.holidays[""] {
		merged[date] = struct{}{}
	}
	if tenantID != "" {
		for date := range s.holidays[tenantID] {
			merged[date] = struct{}{}
		}
	}
	dates := make([]string, 0, len(merged))
	for date := range merged {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func (s *HolidayStore) AddHoliday(_ context.Context, tenantID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holidays[tenantID] == nil {
		s.holidays[tenantID] = make(map[string]struct{})
	}
	s.holidays[tenantID][date] = struct{}{}
	return nil
}

var (
	_ storage.OrderStore      = (*OrderStore)(nil)
	_ storage.ServiceStore    = (*ServiceStore)(nil)
	_ storage.SlaClockStore   = (*SlaClockStore)(nil)
	_ storage.EventStore      = (*EventStore)(nil)
	_ storage.CheckpointStore = (*CheckpointStore)(nil)
	_ storage.HolidayStore    = (*HolidayStore)(nil)
)

// checkVersion enforces the optimistic concurrency contract shared by all
// aggregate stores: version zero inserts, anything else must match.
// appendToJournal forwards save events to the shared journal. evts without a
// configured journal is a wiring error, not a silent drop.
func appendToJournal(ctx context.Context, journal *EventStore, evts []event.Event) error {
	if len(evts) == 0 {
		return nil
	}
	if journal == nil {
		return fmt.Errorf("store has no event journal configured")
	}
	return journal.AppendEvents(ctx, evts)
}

func checkVersion(exists bool, storedVersion, putVersion int64) error {
	if !exists {
		if putVersion != 0 {
			return storage.ErrVersionConflict
		}
		return nil
	}
	if storedVersion != putVersion {
		return storage.ErrVersionConflict
	}
	return nil
}
