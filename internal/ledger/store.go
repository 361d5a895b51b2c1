// Package ledger is the client-side view of the cost sheet backend.
//
// The backend cannot confirm writes, so every mutation is applied to the
// local view first, sent as a blind write, and followed after a settle delay
// by a read that replaces the local view with whatever the backend returns.
// Reconciliation is a heuristic: a backend slower than the delay yields a
// stale read, and that read still wins until the next refresh.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"costledger/internal/core"
	"costledger/internal/gateway"
	applog "costledger/internal/log"
)

// DefaultSettleDelay is how long the backend is given to apply a write.
const DefaultSettleDelay = 800 * time.Millisecond

type Options struct {
	SettleDelay time.Duration
	// After replaces time.After, so tests can release the delay by hand.
	After     func(time.Duration) <-chan time.Time
	Now       func() time.Time
	EnteredBy string
	Recorder  Recorder
	Logger    *slog.Logger
}

type Store struct {
	gw    gateway.Gateway
	delay time.Duration
	after func(time.Duration) <-chan time.Time
	now   func() time.Time
	user  string
	rec   Recorder
	log   *slog.Logger

	mu           sync.Mutex
	sheets       []core.CostSheet
	sheetsLoaded bool
	openID       string
	items        []core.LineItem
	// seen counts rows per itemKey in the last backend read of the open
	// sheet, so a read-back can tell a new row from an older duplicate.
	seen        map[string]int
	vocab       core.Vocabulary
	vocabLoaded bool
	drafts      map[string]core.LineItem
	closed      bool

	pending sync.WaitGroup
}

func New(gw gateway.Gateway, opts Options) *Store {
	s := &Store{
		gw:     gw,
		delay:  opts.SettleDelay,
		after:  opts.After,
		now:    opts.Now,
		user:   opts.EnteredBy,
		rec:    opts.Recorder,
		log:    opts.Logger,
		drafts: map[string]core.LineItem{},
	}
	if s.delay <= 0 {
		s.delay = DefaultSettleDelay
	}
	if s.after == nil {
		s.after = time.After
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rec == nil {
		s.rec = NopRecorder{}
	}
	if s.log == nil {
		s.log = slog.Default().With(applog.FieldComponent, applog.ComponentLedger)
	}
	return s
}

// LoadSheets replaces the sheet list with the backend's.
func (s *Store) LoadSheets(ctx context.Context) ([]core.CostSheet, error) {
	sheets, err := s.gw.GetCostSheets(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load cost sheets", applog.FieldError, err)
		return nil, &LoadError{Op: "load cost sheets", Err: err}
	}
	s.mu.Lock()
	s.sheets = cloneSheets(sheets)
	s.sheetsLoaded = true
	s.mu.Unlock()
	return cloneSheets(sheets), nil
}

// OpenSheet selects a sheet and replaces the item view with its active items.
func (s *Store) OpenSheet(ctx context.Context, id string) ([]core.LineItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("costSheetId", ErrNoOpenSheet)
	}
	items, err := s.gw.GetCostSheetDetails(ctx, id)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load cost sheet",
			applog.FieldCostSheetID, id,
			applog.FieldError, err)
		return nil, &LoadError{Op: "load cost sheet " + id, Err: err}
	}
	active := core.ActiveItems(items)
	s.mu.Lock()
	s.openID = id
	s.items = active
	s.seen = countKeys(active)
	s.mu.Unlock()
	return cloneItems(active), nil
}

// LoadValidation fetches the head vocabulary.
func (s *Store) LoadValidation(ctx context.Context) (core.Vocabulary, error) {
	v, err := s.gw.GetValidation(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load validation lists", applog.FieldError, err)
		return core.Vocabulary{}, &LoadError{Op: "load validation lists", Err: err}
	}
	s.mu.Lock()
	s.vocab = v.Clone()
	s.vocabLoaded = true
	s.mu.Unlock()
	return v.Clone(), nil
}

// Refresh reloads the vocabulary, the sheet list and the open sheet. Each
// load keeps its prior state on failure; the first error is returned.
func (s *Store) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := s.LoadValidation(ctx)
		return err
	})
	g.Go(func() error {
		_, err := s.LoadSheets(ctx)
		return err
	})
	if id := s.OpenSheetID(); id != "" {
		g.Go(func() error {
			_, err := s.OpenSheet(ctx, id)
			return err
		})
	}
	return g.Wait()
}

// AddLineItem computes the item, appends it to the local view, sends it and
// schedules the read-back. The head's draft is cleared either way.
func (s *Store) AddLineItem(ctx context.Context, head string, draft core.LineItem) (*Reconciliation, error) {
	if isBlank(draft.Particular) && isBlank(draft.Details) && isBlank(draft.Amount) {
		return nil, invalid("lineItem", ErrEmptyLineItem)
	}
	head = strings.TrimSpace(head)
	if head == "" {
		head = strings.TrimSpace(draft.Head)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	sheetID := s.openID
	known := !s.vocabLoaded || s.vocab.HasHead(head)
	s.mu.Unlock()

	if sheetID == "" {
		return nil, invalid("costSheetId", ErrNoOpenSheet)
	}
	if head == "" || !known {
		return nil, invalid("head", fmt.Errorf("%w: %q", ErrUnknownHead, head))
	}

	item := core.ComputeLineItem(draft)
	item.CostSheetID = sheetID
	item.Head = head
	item.Active = true
	if isBlank(item.EntryTimestamp) {
		item.EntryTimestamp = s.now().Format(time.RFC3339)
	}
	if isBlank(item.EnteredBy) {
		item.EnteredBy = s.user
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	key := itemKey(item)
	existing := 0
	if s.openID == sheetID {
		existing = s.seen[key]
		s.items = append(s.items, item)
	}
	delete(s.drafts, head)
	s.pending.Add(1)
	s.mu.Unlock()

	w := s.submit(ctx, gateway.ActionAddLineItem, sheetID, item.Particular, item, func(ctx context.Context) error {
		return s.gw.AddLineItem(ctx, item)
	})
	r := newReconciliation(w, 0)
	go s.reconcileDetails(ctx, r, func(rows []core.LineItem) bool {
		return countKeys(rows)[key] > existing
	})
	return r, nil
}

// SoftDeleteLineItem removes every local item sharing the target's
// particular, then asks the backend to deactivate it. The backend may
// deactivate fewer rows; the read-back decides. Reconciliation.Removed
// reports the local match count.
func (s *Store) SoftDeleteLineItem(ctx context.Context, target core.LineItem) (*Reconciliation, error) {
	particular := target.Particular
	if isBlank(particular) {
		return nil, invalid("particular", ErrNoIdentifyingKey)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	sheetID := strings.TrimSpace(target.CostSheetID)
	if sheetID == "" {
		sheetID = s.openID
	}
	if sheetID == "" {
		s.mu.Unlock()
		return nil, invalid("costSheetId", ErrNoOpenSheet)
	}
	removed := 0
	if sheetID == s.openID {
		kept := s.items[:0:0]
		for _, it := range s.items {
			if it.Particular == particular {
				removed++
				continue
			}
			kept = append(kept, it)
		}
		s.items = kept
	}
	s.pending.Add(1)
	s.mu.Unlock()

	if removed > 1 {
		s.log.InfoContext(ctx, "Soft delete matched several rows",
			applog.FieldCostSheetID, sheetID,
			applog.FieldParticular, particular,
			applog.FieldRemoved, removed)
	}

	key := gateway.DeleteKey{CostSheetID: sheetID, Particular: particular}
	w := s.submit(ctx, gateway.ActionSoftDeleteLineItem, sheetID, particular, key, func(ctx context.Context) error {
		return s.gw.SoftDeleteLineItem(ctx, sheetID, particular)
	})
	r := newReconciliation(w, removed)
	go s.reconcileDetails(ctx, r, func(rows []core.LineItem) bool {
		return len(core.MatchParticular(rows, particular)) == 0
	})
	return r, nil
}

// CreateCostSheet sends a new sheet and reloads the list after the delay.
// Nothing is shown locally until then.
func (s *Store) CreateCostSheet(ctx context.Context, fields core.CostSheet) (*Reconciliation, error) {
	if fields.Status == "" {
		fields.Status = core.StatusDraft
	}
	if !fields.Status.Valid() {
		return nil, invalid("status", fmt.Errorf("%w: %q", ErrInvalidField, fields.Status))
	}
	if fields.Linked.Type != "" && !fields.Linked.Type.Valid() {
		return nil, invalid("linkedType", fmt.Errorf("%w: %q", ErrInvalidField, fields.Linked.Type))
	}

	s.mu.Lock()
	closed, loaded := s.closed, s.sheetsLoaded
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	// The read-back is compared with the list as it was before the write,
	// so take one now if the list was never loaded. A failure is logged by
	// LoadSheets and leaves only the linked-entity check.
	if !loaded {
		_, _ = s.LoadSheets(ctx)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	var known map[string]bool
	if s.sheetsLoaded {
		known = make(map[string]bool, len(s.sheets))
		for _, cs := range s.sheets {
			known[cs.ID] = true
		}
	}
	s.pending.Add(1)
	s.mu.Unlock()

	w := s.submit(ctx, gateway.ActionCreateCostSheet, fields.ID, "", fields, func(ctx context.Context) error {
		return s.gw.CreateCostSheet(ctx, fields)
	})
	r := newReconciliation(w, 0)
	go s.reconcileSheets(ctx, r, func(sheets []core.CostSheet) bool {
		if known == nil {
			return hasLinked(sheets, fields.Linked)
		}
		return hasNewSheet(sheets, known, fields.Linked)
	})
	return r, nil
}

// submit issues a blind write. A transport error is logged and recorded but
// never returned: a failed write and an unreadable success look the same.
func (s *Store) submit(ctx context.Context, action, sheetID, particular string, payload any, write func(context.Context) error) WriteRecord {
	ctx = context.WithoutCancel(ctx)
	w := WriteRecord{
		ID:          uuid.NewString(),
		Action:      action,
		CostSheetID: sheetID,
		Particular:  particular,
		SubmittedAt: s.now(),
	}
	if b, err := json.Marshal(payload); err == nil {
		w.Payload = b
	}

	fields := applog.NewFields().WithWrite(action, sheetID, particular)
	if err := write(ctx); err != nil {
		w.TransportError = err.Error()
		s.log.WarnContext(ctx, "Blind write failed, proceeding optimistically",
			fields.WithError(err).ToSlice()...)
	} else {
		s.log.InfoContext(ctx, "Blind write submitted", fields.ToSlice()...)
	}

	if err := s.rec.RecordWrite(ctx, w); err != nil {
		s.log.WarnContext(ctx, "Failed to record write", applog.FieldError, err)
	}
	return w
}

func (s *Store) reconcileDetails(ctx context.Context, r *Reconciliation, visible func([]core.LineItem) bool) {
	defer s.pending.Done()
	defer close(r.done)
	<-s.after(s.delay)
	ctx = context.WithoutCancel(ctx)

	items, err := s.gw.GetCostSheetDetails(ctx, r.CostSheetID)
	if err != nil {
		r.err = &LoadError{Op: "reconcile cost sheet " + r.CostSheetID, Err: err}
		r.outcome = OutcomeFailed
		s.finish(ctx, r, 0)
		return
	}
	active := core.ActiveItems(items)
	r.rows = active

	s.mu.Lock()
	current := s.openID == r.CostSheetID
	if current {
		s.items = cloneItems(active)
		s.seen = countKeys(active)
	}
	s.mu.Unlock()

	switch {
	case !current:
		r.outcome = OutcomeDiscarded
	case visible(active):
		r.outcome = OutcomeConfirmed
	default:
		r.outcome = OutcomeUnconfirmed
	}
	s.finish(ctx, r, len(active))
}

func (s *Store) reconcileSheets(ctx context.Context, r *Reconciliation, visible func([]core.CostSheet) bool) {
	defer s.pending.Done()
	defer close(r.done)
	<-s.after(s.delay)
	ctx = context.WithoutCancel(ctx)

	sheets, err := s.LoadSheets(ctx)
	if err != nil {
		r.err = err
		r.outcome = OutcomeFailed
		s.finish(ctx, r, 0)
		return
	}
	r.sheets = sheets
	r.outcome = OutcomeUnconfirmed
	if visible(sheets) {
		r.outcome = OutcomeConfirmed
	}
	s.finish(ctx, r, len(sheets))
}

func (s *Store) finish(ctx context.Context, r *Reconciliation, rows int) {
	rec := ReconcileRecord{
		WriteID:      r.WriteID,
		Action:       r.Action,
		CostSheetID:  r.CostSheetID,
		Particular:   r.Particular,
		Outcome:      r.outcome,
		Rows:         rows,
		ReconciledAt: s.now(),
	}
	if r.err != nil {
		rec.Error = r.err.Error()
	}

	fields := applog.NewFields().WithWrite(r.Action, r.CostSheetID, r.Particular).WithError(r.err)
	fields[applog.FieldOutcome] = string(r.outcome)
	fields[applog.FieldRows] = rows
	if r.outcome == OutcomeConfirmed || r.outcome == OutcomeDiscarded {
		s.log.DebugContext(ctx, "Reconciled", fields.ToSlice()...)
	} else {
		s.log.WarnContext(ctx, "Reconciled without confirmation", fields.ToSlice()...)
	}

	if err := s.rec.RecordReconciliation(ctx, rec); err != nil {
		s.log.WarnContext(ctx, "Failed to record reconciliation", applog.FieldError, err)
	}
}

// Close stops accepting writes and waits for pending reconciliations.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetDraft stages fields for head and returns them with derived amounts.
func (s *Store) SetDraft(head string, fields core.LineItem) core.LineItem {
	head = strings.TrimSpace(head)
	fields.Head = head
	s.mu.Lock()
	s.drafts[head] = fields
	s.mu.Unlock()
	return core.ComputeLineItem(fields)
}

// Draft returns the staged fields for head, empty when none are staged.
func (s *Store) Draft(head string) core.LineItem {
	head = strings.TrimSpace(head)
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[head]; ok {
		return d
	}
	return core.LineItem{Head: head}
}

func (s *Store) ResetDraft(head string) {
	s.mu.Lock()
	delete(s.drafts, strings.TrimSpace(head))
	s.mu.Unlock()
}

// Totals aggregates the open sheet over the loaded vocabulary.
func (s *Store) Totals() core.SheetTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Aggregate(s.vocab.Heads, s.items)
}

func (s *Store) Search(query string) []core.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.SearchItems(s.items, query)
}

func (s *Store) Items() []core.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

func (s *Store) Sheets() []core.CostSheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSheets(s.sheets)
}

func (s *Store) OpenSheetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openID
}

// VocabularyLoaded reports whether LoadValidation has succeeded at least once.
func (s *Store) VocabularyLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vocabLoaded
}

func (s *Store) Vocabulary() core.Vocabulary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vocab.Clone()
}

// itemKey identifies an added row in a read-back: its particular, or its
// details, amount and head when it has none.
func itemKey(li core.LineItem) string {
	if li.Particular != "" {
		return "p\x00" + li.Particular
	}
	return "d\x00" + li.Details + "\x00" + li.Amount + "\x00" + li.Head
}

func countKeys(rows []core.LineItem) map[string]int {
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[itemKey(r)]++
	}
	return out
}

// hasNewSheet reports a sheet whose ID was not in known and, when the write
// named a linked entity, that points at it.
func hasNewSheet(sheets []core.CostSheet, known map[string]bool, l core.LinkedEntity) bool {
	for _, cs := range sheets {
		if cs.ID == "" || known[cs.ID] {
			continue
		}
		if l.ID == "" || linkedTo(cs, l) {
			return true
		}
	}
	return false
}

func hasLinked(sheets []core.CostSheet, l core.LinkedEntity) bool {
	if l.ID == "" {
		return false
	}
	for _, cs := range sheets {
		if linkedTo(cs, l) {
			return true
		}
	}
	return false
}

func linkedTo(cs core.CostSheet, l core.LinkedEntity) bool {
	return cs.Linked.ID == l.ID && (l.Type == "" || cs.Linked.Type == l.Type)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func cloneItems(in []core.LineItem) []core.LineItem {
	if in == nil {
		return nil
	}
	return append([]core.LineItem(nil), in...)
}

func cloneSheets(in []core.CostSheet) []core.CostSheet {
	if in == nil {
		return nil
	}
	out := make([]core.CostSheet, len(in))
	for i, cs := range in {
		out[i] = cs
		if cs.Extra != nil {
			out[i].Extra = make(map[string]string, len(cs.Extra))
			for k, v := range cs.Extra {
				out[i].Extra[k] = v
			}
		}
	}
	return out
}
