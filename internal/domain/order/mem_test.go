package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/radorder/radorder/internal/platform/events"
	"github.com/radorder/radorder/internal/platform/lock"
)

// memStore backs the in-memory repositories. A snapshotTx restores it on
// rollback, so tests can assert that failed operations leave no writes.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	orders   map[int64]Order
	attempts []ValidationAttempt
	history  []History
	patients map[int64]TemporaryPatient

	failHistory bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:   100,
		orders:   map[int64]Order{},
		patients: map[int64]TemporaryPatient{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	nextID   int64
	orders   map[int64]Order
	attempts []ValidationAttempt
	history  []History
	patients map[int64]TemporaryPatient
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		nextID:   s.nextID,
		orders:   make(map[int64]Order, len(s.orders)),
		attempts: append([]ValidationAttempt(nil), s.attempts...),
		history:  append([]History(nil), s.history...),
		patients: make(map[int64]TemporaryPatient, len(s.patients)),
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.patients {
		snap.patients[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID, s.orders, s.attempts, s.history, s.patients = snap.nextID, snap.orders, snap.attempts, snap.history, snap.patients
}

// put seeds an order and returns its id.
func (s *memStore) put(o Order) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.id()
	}
	s.orders[o.ID] = o
	return o.ID
}

func (s *memStore) order(id int64) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) historyFor(id int64) []History {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []History
	for _, h := range s.history {
		if h.OrderID == id {
			out = append(out, h)
		}
	}
	return out
}

// -- transactors --

// snapshotTx serializes transactions and rolls the store back on error.
type snapshotTx struct {
	mu    sync.Mutex
	store *memStore
}

func (t *snapshotTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// passTx runs fn without isolation so lock behavior is observable.
type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// -- repositories --

type memOrders struct{ s *memStore }

func (r memOrders) Create(_ context.Context, o *Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = r.s.id()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	r.s.orders[o.ID] = *o
	return nil
}

func (r memOrders) GetByID(_ context.Context, id int64) (*Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (r memOrders) GetByIDForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.GetByID(ctx, id)
}

func (r memOrders) save(o *Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	o.UpdatedAt = time.Now()
	r.s.orders[o.ID] = *o
	return nil
}

func (r memOrders) ApplyFinalization(_ context.Context, o *Order) error { return r.save(o) }

func (r memOrders) UpdateStatus(_ context.Context, o *Order) error { return r.save(o) }

func (r memOrders) ListByOrganization(_ context.Context, orgID int64, status Status, limit, offset int) ([]*Order, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*Order
	for _, o := range r.s.orders {
		o := o
		if o.ReferringOrganizationID != orgID && (o.RadiologyOrganizationID == nil || *o.RadiologyOrganizationID != orgID) {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		all = append(all, &o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type memAttempts struct{ s *memStore }

func (r memAttempts) MaxAttemptNumber(_ context.Context, orderID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	max := 0
	for _, a := range r.s.attempts {
		if a.OrderID == orderID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max, nil
}

func (r memAttempts) Insert(_ context.Context, a *ValidationAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.attempts {
		if existing.OrderID == a.OrderID && existing.AttemptNumber == a.AttemptNumber {
			return ErrAttemptConflict
		}
	}
	a.ID = r.s.id()
	a.CreatedAt = time.Now()
	r.s.attempts = append(r.s.attempts, *a)
	return nil
}

func (r memAttempts) ListByOrder(_ context.Context, orderID int64) ([]*ValidationAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*ValidationAttempt
	for _, a := range r.s.attempts {
		a := a
		if a.OrderID == orderID {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

type memHistory struct{ s *memStore }

func (r memHistory) Create(_ context.Context, h *History) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failHistory {
		return errors.New("history write failed")
	}
	h.ID = r.s.id()
	h.CreatedAt = time.Now()
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r memHistory) ListByOrder(_ context.Context, orderID int64) ([]*History, error) {
	var out []*History
	for _, h := range r.s.historyFor(orderID) {
		h := h
		out = append(out, &h)
	}
	return out, nil
}

// -- collaborators --

type memMembers map[int64]int64

func (m memMembers) OrganizationOf(_ context.Context, userID int64) (int64, error) {
	org, ok := m[userID]
	if !ok {
		return 0, errors.New("user not found")
	}
	return org, nil
}

// memPatients writes temporary patients into the store so rollback removes them.
type memPatients struct {
	s      *memStore
	calls  int
	err    error
	owners map[int64]int64
}

func (p *memPatients) PatientOrganization(_ context.Context, patientID int64) (int64, error) {
	org, ok := p.owners[patientID]
	if !ok {
		return 0, ErrPatientNotFound
	}
	return org, nil
}

func (p *memPatients) CreateTemporaryPatient(_ context.Context, _ int64, tp TemporaryPatient) (int64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	id := p.s.id()
	p.s.patients[id] = tp
	return id, nil
}

const (
	physicianID  int64 = 7
	outsiderID   int64 = 8
	referringOrg int64 = 1
	otherOrg     int64 = 2
)

type fixture struct {
	store    *memStore
	svc      *Service
	patients *memPatients
	events   *events.Memory
}

func newFixture() *fixture {
	store := newMemStore()
	tx := &snapshotTx{store: store}
	tracker := NewAttemptTracker(memAttempts{store}, tx, lock.NewLocal())
	svc := NewService(memOrders{store}, memHistory{store}, tracker, tx,
		memMembers{physicianID: referringOrg, outsiderID: otherOrg}, zerolog.Nop())
	patients := &memPatients{s: store, owners: map[int64]int64{42: referringOrg, 43: referringOrg, 99: otherOrg}}
	svc.SetPatientCreator(patients)
	svc.SetPatientLookup(patients)
	pub := &events.Memory{}
	svc.SetPublisher(pub)
	return &fixture{store: store, svc: svc, patients: patients, events: pub}
}

func int64Ptr(v int64) *int64 { return &v }

// seedPending stores an order awaiting the physician's decision.
func (f *fixture) seedPending(patientID *int64) int64 {
	dictation := "MRI lumbar spine, low back pain for 8 weeks"
	return f.store.put(Order{
		OrderNumber:             "ROP-20260301-AAAA0001",
		PatientID:               patientID,
		ReferringOrganizationID: referringOrg,
		Status:                  StatusPendingValidation,
		Priority:                "routine",
		OriginalDictation:       &dictation,
	})
}

func validPayload() *FinalizePayload {
	score := 8.0
	return &FinalizePayload{
		FinalValidationStatus: "appropriate",
		FinalComplianceScore:  &score,
		ClinicalIndication:    "Low back pain with radiculopathy",
		Modality:              "MRI",
		FinalCPTCode:          "72148",
		FinalICD10Codes:       []string{"M54.16"},
	}
}
