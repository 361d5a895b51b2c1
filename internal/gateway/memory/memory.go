// Package memory is an in-process backend. Writes become visible to reads
// only after ApplyLag, which models a spreadsheet backend that applies blind
// writes some time after accepting them.
package memory

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"costledger/internal/core"
	"costledger/internal/gateway"
)

// ErrUnavailable is returned when the store is switched offline.
var ErrUnavailable = errors.New("memory backend unavailable")

type pendingWrite struct {
	visibleAt time.Time
	apply     func()
}

type Store struct {
	mu      sync.Mutex
	vocab   core.Vocabulary
	sheets  []core.CostSheet
	items   map[string][]core.LineItem
	pending []pendingWrite
	calls   map[string]int

	applyLag time.Duration
	now      func() time.Time
	readErr  error
	writeErr error
	nextID   func() string
}

type Option func(*Store)

// WithApplyLag delays the visibility of every write.
func WithApplyLag(d time.Duration) Option {
	return func(s *Store) { s.applyLag = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs replaces the cost sheet id generator.
func WithIDs(next func() string) Option {
	return func(s *Store) { s.nextID = next }
}

func New(vocab core.Vocabulary, opts ...Option) *Store {
	s := &Store{
		vocab: vocab.Clone(),
		items: map[string][]core.LineItem{},
		calls: map[string]int{},
		now:   time.Now,
		nextID: func() string {
			return "CS-" + strings.ToUpper(uuid.NewString()[:8])
		},
	}
	s.vocab.Heads = dedupe(s.vocab.Heads)
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromFiles seeds the vocabulary from <base>/seed_heads.txt and
// <base>/seed_payment_status.txt, falling back to a small default set.
func NewFromFiles(base string, opts ...Option) *Store {
	heads := readLines(filepath.Join(base, "seed_heads.txt"))
	if len(heads) == 0 {
		heads = []string{"Travel", "Food", "Accommodation", "Logistics", "Miscellaneous"}
	}
	statuses := readLines(filepath.Join(base, "seed_payment_status.txt"))
	if len(statuses) == 0 {
		statuses = []string{"Pending", "Paid", "Reimbursed"}
	}
	return New(core.Vocabulary{Heads: heads, PaymentStatus: statuses}, opts...)
}

// SetOffline makes reads and writes fail, to model an unreachable backend.
func (s *Store) SetOffline(reads, writes bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr, s.writeErr = nil, nil
	if reads {
		s.readErr = ErrUnavailable
	}
	if writes {
		s.writeErr = ErrUnavailable
	}
}

// Calls returns how many times action was requested.
func (s *Store) Calls(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[action]
}

// TotalCalls counts every request made to the store.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Seed stores a sheet and its items immediately, bypassing the apply lag.
func (s *Store) Seed(cs core.CostSheet, items ...core.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets = append(s.sheets, cs)
	for _, it := range items {
		it.CostSheetID = cs.ID
		s.items[cs.ID] = append(s.items[cs.ID], it)
	}
}

// Flush applies every pending write regardless of lag.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		p.apply()
	}
	s.pending = nil
}

func (s *Store) GetValidation(_ context.Context) (core.Vocabulary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[gateway.ActionGetValidation]++
	if s.readErr != nil {
		return core.Vocabulary{}, s.readErr
	}
	return s.vocab.Clone(), nil
}

func (s *Store) GetCostSheets(_ context.Context) ([]core.CostSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[gateway.ActionGetCostSheets]++
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.applyDue()
	return append([]core.CostSheet(nil), s.sheets...), nil
}

func (s *Store) GetCostSheetDetails(_ context.Context, id string) ([]core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[gateway.ActionGetCostSheetDetail]++
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.applyDue()
	return append([]core.LineItem(nil), s.items[id]...), nil
}

func (s *Store) CreateCostSheet(_ context.Context, cs core.CostSheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[gateway.ActionCreateCostSheet]++
	if s.writeErr != nil {
		return s.writeErr
	}
	if cs.ID == "" {
		cs.ID = s.nextID()
	}
	if cs.Status == "" {
		cs.Status = core.StatusDraft
	}
	s.enqueue(func() { s.sheets = append(s.sheets, cs) })
	return nil
}

func (s *Store) AddLineItem(_ context.Context, li core.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[gateway.ActionAddLineItem]++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.enqueue(func() { s.items[li.CostSheetID] = append(s.items[li.CostSheetID], li) })
	return nil
}

// SoftDeleteLineItem deactivates the first active row matching particular,
// the way the spreadsheet script does; later duplicates stay active.
func (s *Store) SoftDeleteLineItem(_ context.Context, costSheetID, particular string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[gateway.ActionSoftDeleteLineItem]++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.enqueue(func() {
		rows := s.items[costSheetID]
		for i := range rows {
			if rows[i].Active && rows[i].Particular == particular {
				rows[i].Active = false
				return
			}
		}
	})
	return nil
}

func (s *Store) enqueue(apply func()) {
	if s.applyLag <= 0 {
		apply()
		return
	}
	s.pending = append(s.pending, pendingWrite{visibleAt: s.now().Add(s.applyLag), apply: apply})
}

func (s *Store) applyDue() {
	now := s.now()
	kept := s.pending[:0]
	for _, p := range s.pending {
		if now.Before(p.visibleAt) {
			kept = append(kept, p)
			continue
		}
		p.apply()
	}
	s.pending = kept
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

var _ gateway.Gateway = (*Store)(nil)
