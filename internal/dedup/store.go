package dedup

import (
	"errors"
	"sync"
	"time"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
)

const DefaultTicketTTL = 4 * time.Hour

var errFlightAborted = errors.New("ticket creation aborted")

// flight tracks the single in-progress creation for a dedup key.
type flight struct {
	done   chan struct{}
	record domain.TicketRecord
	err    error
}

// Store is a TTL-indexed map from dedup key to ticket record. Records and
// in-flight creations share one mutex.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	window  time.Duration
	records map[string]domain.TicketRecord
	flights map[string]*flight
	now     func() time.Time
}

// NewStore creates a store whose records live for ttl and absorb duplicates
// for window. A zero window uses ttl.
func NewStore(ttl, window time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	if window <= 0 || window > ttl {
		window = ttl
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		ttl:     ttl,
		window:  window,
		records: make(map[string]domain.TicketRecord),
		flights: make(map[string]*flight),
		now:     now,
	}
}

func (s *Store) live(rec domain.TicketRecord, now time.Time) bool {
	return now.Before(rec.ExpiresAt) && now.Before(rec.CreatedAt.Add(s.window))
}

// Get returns the live record for key.
func (s *Store) Get(key string) (domain.TicketRecord, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || !s.live(rec, now) {
		return domain.TicketRecord{}, false
	}
	return rec, true
}

// claim resolves key to a live record, an existing flight to wait on, or a new
// flight owned by the caller (leader == true).
func (s *Store) claim(key string) (rec domain.TicketRecord, hit bool, fl *flight, leader bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok {
		if s.live(rec, now) {
			return rec, true, nil, false
		}
		delete(s.records, key)
	}
	if fl, ok := s.flights[key]; ok {
		return domain.TicketRecord{}, false, fl, false
	}
	fl = &flight{done: make(chan struct{})}
	s.flights[key] = fl
	return domain.TicketRecord{}, false, fl, true
}

// settle finishes a flight. On success the record is stored under key.
func (s *Store) settle(key string, fl *flight, category domain.Category, ticket domain.Ticket, err error) domain.TicketRecord {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		fl.record = domain.TicketRecord{
			DedupKey:  key,
			TicketID:  ticket.ID,
			TicketURL: ticket.URL,
			Category:  category,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		s.records[key] = fl.record
	}
	fl.err = err
	if s.flights[key] == fl {
		delete(s.flights, key)
	}
	close(fl.done)
	return fl.record
}

// Sweep evicts expired records. In-flight creations are never touched.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
