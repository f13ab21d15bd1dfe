package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ReserveOutcome classifies the result of a Reserve call.
type ReserveOutcome int

const (
	ReserveOK ReserveOutcome = iota
	ReserveNotFound
	ReserveNotAvailable
	ReserveInsufficientStock
)

// ReserveResult carries a Reserve call's outcome and, on success, the
// product snapshot taken immediately after the decrement.
type ReserveResult struct {
	Outcome           ReserveOutcome
	Product           Product
	AvailableQuantity int // populated on ReserveInsufficientStock
}

// Store is the single-writer-per-process Inventory Store. All mutating
// operations, including Reserve, serialize through mu and persist inside
// the critical section, matching the teacher's single-writer discipline
// for its reservation transactions (stock/store_reservations.go) — here
// implemented over an in-memory slice and a JSON file instead of
// Postgres, since the spec calls for single-file persistence (§4.2).
type Store struct {
	mu       sync.Mutex
	path     string
	log      *slog.Logger
	products []Product
	nextID   int
}

// New constructs a Store bound to a JSON file path, without loading it.
// Call LoadOrSeed before use.
func New(path string, log *slog.Logger) *Store {
	return &Store{path: path, log: log}
}

// LoadOrSeed reads the persisted JSON document. On first start (file
// absent) or on a malformed file, it falls back to the fixed
// demonstration catalog and logs — it never crashes the process.
func (s *Store) LoadOrSeed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("inventory file unreadable, seeding", slog.Any("error", err))
		}
		s.seedLocked()
		return s.persistLocked()
	}

	var loaded []Product
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.log.Warn("inventory file malformed, seeding", slog.Any("error", err))
		s.seedLocked()
		return s.persistLocked()
	}

	s.products = loaded
	s.nextID = 1
	for _, p := range s.products {
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
	}
	return nil
}

func (s *Store) seedLocked() {
	now := time.Now()
	seed := seedCatalog()
	s.products = make([]Product, 0, len(seed))
	for i, p := range seed {
		p.ID = i + 1
		p.CreatedAt = now
		p.applyAvailability()
		s.products = append(s.products, p)
	}
	s.nextID = len(seed) + 1
}

// List returns a snapshot copy of every product, ordered by id.
func (s *Store) List() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Product, len(s.products))
	copy(out, s.products)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a single product by id.
func (s *Store) Get(id int) (Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return Product{}, false
	}
	return s.products[idx], true
}

// Create appends a new product, assigning the next id, and persists.
func (s *Store) Create(p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID
	s.nextID++
	p.CreatedAt = time.Now()
	p.applyAvailability()

	s.products = append(s.products, p)
	if err := s.persistLocked(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ProductPatch carries the subset of fields Update may change. A nil
// field leaves the current value untouched.
type ProductPatch struct {
	Name        *string
	Category    *string
	Price       *float64
	Stock       *int
	Description *string
}

// Update applies a patch to a product by id, recomputing invariant I1
// whenever Stock changes, and persists.
func (s *Store) Update(id int, patch ProductPatch) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return Product{}, ErrNotFound
	}

	p := &s.products[idx]
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
		p.applyAvailability()
	}

	if err := s.persistLocked(); err != nil {
		return Product{}, err
	}
	return *p, nil
}

// Delete removes a product. The purchase pipeline never calls this —
// only an admin surface would — but the Inventory Store owns full CRUD
// per §4.2.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return ErrNotFound
	}
	s.products = append(s.products[:idx], s.products[idx+1:]...)
	return s.persistLocked()
}

// Reserve atomically decrements stock by qty if enough is available. Two
// concurrent reservations for the same product are linearized by mu: the
// second call always observes the first's decrement (§5, P8).
func (s *Store) Reserve(id, qty int) ReserveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return ReserveResult{Outcome: ReserveNotFound}
	}

	p := &s.products[idx]
	if !p.Available {
		return ReserveResult{Outcome: ReserveNotAvailable}
	}
	if p.Stock < qty {
		return ReserveResult{Outcome: ReserveInsufficientStock, AvailableQuantity: p.Stock}
	}

	p.Stock -= qty
	p.applyAvailability()

	if err := s.persistLocked(); err != nil {
		// Persistence failure after a committed in-memory decrement is
		// surfaced by returning the decremented snapshot anyway — the
		// write-to-temp+rename path below only fails on disk
		// exhaustion/permission errors, which the caller can't repair
		// mid-request, and the source's unconditional write has the
		// same failure mode (§9).
		s.log.Error("failed to persist reservation", slog.Any("error", err), slog.Int("product_id", id))
	}

	return ReserveResult{Outcome: ReserveOK, Product: *p}
}

// Release is the inverse of Reserve, used only by the Dispatcher's
// rollback path (§4.5) and cancellation cleanup (§5).
func (s *Store) Release(id, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return ErrNotFound
	}

	p := &s.products[idx]
	p.Stock += qty
	p.applyAvailability()

	return s.persistLocked()
}

func (s *Store) indexOfLocked(id int) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the whole product list atomically: serialize to a
// temp file in the same directory, then rename over the target. The
// source writes the file directly on every mutation and can corrupt on
// crash (§9) — this fixes that while keeping the "rewrite everything"
// simplicity.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.products, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".inventory-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp inventory file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp inventory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp inventory file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename inventory file into place: %w", err)
	}
	return nil
}

// ErrNotFound is returned by Update/Delete when the id doesn't exist.
var ErrNotFound = fmt.Errorf("product not found")
