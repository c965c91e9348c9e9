package dispute

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound signals that no dispute exists for the given identifier.
var ErrNotFound = errors.New("dispute: not found")

// Store is the persistence boundary for disputes. The engine is the only
// writer; implementations must keep a dispute's audit entries append-only and
// must commit the dispute update and the appended entries as one atomic unit.
type Store interface {
	// Insert stores a newly created dispute. The creation audit entry is
	// already present in d.History.
	Insert(ctx context.Context, d Dispute) error

	// Update overwrites the dispute and persists appended, the audit
	// entries added by the current operation. The same entries are already
	// present at the tail of d.History.
	Update(ctx context.Context, d Dispute, appended []Entry) error

	// Get returns the dispute or ErrNotFound.
	Get(ctx context.Context, id string) (Dispute, error)

	// ListActive returns disputes not yet in a terminal status, in
	// insertion order. When addr is non-empty only disputes where addr is
	// creator or respondent are returned.
	ListActive(ctx context.Context, addr string) ([]Dispute, error)

	// History returns the ordered audit entries for a dispute, or
	// ErrNotFound.
	History(ctx context.Context, id string) ([]Entry, error)
}

// MemoryStore is a process-local Store used by tests and zero-config runs.
// Insertion order is preserved so listings are deterministic.
type MemoryStore struct {
	mu       sync.RWMutex
	disputes map[string]Dispute
	order    []string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{disputes: make(map[string]Dispute)}
}

func (s *MemoryStore) Insert(_ context.Context, d Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.disputes[d.ID]; !exists {
		s.order = append(s.order, d.ID)
	}
	s.disputes[d.ID] = cloneDispute(d)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, d Dispute, _ []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.disputes[d.ID]; !exists {
		return ErrNotFound
	}
	s.disputes[d.ID] = cloneDispute(d)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.disputes[id]
	if !ok {
		return Dispute{}, ErrNotFound
	}
	return cloneDispute(d), nil
}

func (s *MemoryStore) ListActive(_ context.Context, addr string) ([]Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Dispute, 0, len(s.order))
	for _, id := range s.order {
		d := s.disputes[id]
		if d.Status.Terminal() {
			continue
		}
		if addr != "" && !d.Party(addr) {
			continue
		}
		out = append(out, cloneDispute(d))
	}
	return out, nil
}

func (s *MemoryStore) History(_ context.Context, id string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.disputes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Entry, len(d.History))
	copy(out, d.History)
	return out, nil
}

// cloneDispute detaches slices, maps, and pointers so callers cannot mutate
// stored state behind the store's back.
func cloneDispute(d Dispute) Dispute {
	out := d

	if d.InfringementData != nil {
		out.InfringementData = append([]byte(nil), d.InfringementData...)
	}
	if d.RespondentAddress != nil {
		v := *d.RespondentAddress
		out.RespondentAddress = &v
	}
	if d.ArbitrationMethod != nil {
		v := *d.ArbitrationMethod
		out.ArbitrationMethod = &v
	}
	if d.Arbitration != nil {
		a := *d.Arbitration
		a.Extra = cloneMap(d.Arbitration.Extra)
		out.Arbitration = &a
	}
	if d.SettlementOffer != nil {
		o := *d.SettlementOffer
		o.Terms = cloneMap(d.SettlementOffer.Terms)
		if d.SettlementOffer.Responder != nil {
			v := *d.SettlementOffer.Responder
			o.Responder = &v
		}
		if d.SettlementOffer.RespondedAt != nil {
			v := *d.SettlementOffer.RespondedAt
			o.RespondedAt = &v
		}
		out.SettlementOffer = &o
	}
	if d.Resolution != nil {
		r := *d.Resolution
		out.Resolution = &r
	}
	if d.History != nil {
		out.History = make([]Entry, len(d.History))
		copy(out.History, d.History)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
