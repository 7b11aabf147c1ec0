package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// In-memory stand-ins for the orchestrator's collaborators. They keep
// the same guarded-update semantics as the SQL repositories so the
// saga tests exercise real interleavings.

type fakeSessions struct {
	mu   sync.Mutex
	rows map[uint64]model.Session
}

func (f *fakeSessions) GetByID(_ context.Context, id uint64) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &s, nil
}

type fakeBookings struct {
	mu   sync.Mutex
	seq  uint64
	rows map[uint64]*model.Booking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{rows: make(map[uint64]*model.Booking)}
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	b.ID = f.seq
	b.Status = model.BookingPending
	cp := *b
	f.rows[b.ID] = &cp
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) Transition(_ context.Context, id uint64, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (f *fakeBookings) countByStatus(status string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.rows {
		if b.Status == status {
			n++
		}
	}
	return n
}

type fakeSagas struct {
	mu       sync.Mutex
	startErr error
	rows     map[uint64]*repository.SagaRecord
	cancels  map[uint64]*repository.CancellationRecord
}

func newFakeSagas() *fakeSagas {
	return &fakeSagas{
		rows:    make(map[uint64]*repository.SagaRecord),
		cancels: make(map[uint64]*repository.CancellationRecord),
	}
}

func (f *fakeSagas) Start(_ context.Context, bookingID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.rows[bookingID] = &repository.SagaRecord{BookingID: bookingID, State: repository.SagaStarted}
	return nil
}

func (f *fakeSagas) SetReserved(_ context.Context, bookingID uint64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.rows[bookingID]
	rec.State = repository.SagaReserved
	rec.ReservationToken = sql.NullString{String: token, Valid: true}
	return nil
}

func (f *fakeSagas) SetPaid(_ context.Context, bookingID, paymentID uint64, allocationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.rows[bookingID]
	rec.State = repository.SagaPaid
	rec.PaymentID = sql.NullInt64{Int64: int64(paymentID), Valid: true}
	if allocationID != "" {
		rec.AllocationID = sql.NullString{String: allocationID, Valid: true}
	}
	return nil
}

func (f *fakeSagas) SetState(_ context.Context, bookingID uint64, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.rows[bookingID]; ok {
		rec.State = state
	}
	return nil
}

func (f *fakeSagas) Get(_ context.Context, bookingID uint64) (*repository.SagaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[bookingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeSagas) ListUnsettled(_ context.Context, _ time.Duration) ([]repository.SagaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.SagaRecord
	for _, rec := range f.rows {
		if rec.State != repository.SagaConfirmed && rec.State != repository.SagaFailed {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeSagas) StartCancellation(_ context.Context, bookingID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cancels[bookingID]; !ok {
		f.cancels[bookingID] = &repository.CancellationRecord{BookingID: bookingID, CreatedAt: time.Now()}
	}
	return nil
}

func (f *fakeSagas) GetCancellation(_ context.Context, bookingID uint64) (*repository.CancellationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.cancels[bookingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeSagas) ListIncompleteCancellations(_ context.Context, _ time.Duration) ([]repository.CancellationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.CancellationRecord
	for _, rec := range f.cancels {
		if !rec.CompletedAt.Valid {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeSagas) MarkCancellationStep(_ context.Context, bookingID uint64, column string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.cancels[bookingID]
	stamp := sql.NullTime{Time: time.Now(), Valid: true}
	switch column {
	case "refunded_at":
		if !rec.RefundedAt.Valid {
			rec.RefundedAt = stamp
		}
	case "released_at":
		if !rec.ReleasedAt.Valid {
			rec.ReleasedAt = stamp
		}
	case "completed_at":
		if !rec.CompletedAt.Valid {
			rec.CompletedAt = stamp
		}
	}
	return nil
}

type fakeSpot struct {
	total uint32
	taken uint32
}

type fakeToken struct {
	sessionID uint64
	active    bool
}

type fakeCapacity struct {
	mu     sync.Mutex
	seq    int
	spots  map[uint64]*fakeSpot
	tokens map[string]*fakeToken
}

func newFakeCapacity() *fakeCapacity {
	return &fakeCapacity{spots: make(map[uint64]*fakeSpot), tokens: make(map[string]*fakeToken)}
}

func (f *fakeCapacity) Reserve(_ context.Context, sessionID uint64, _ *uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.spots[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	if s.taken >= s.total {
		return "", ErrCapacityExceeded
	}
	s.taken++
	f.seq++
	token := fmt.Sprintf("tok-%d", f.seq)
	f.tokens[token] = &fakeToken{sessionID: sessionID, active: true}
	return token, nil
}

func (f *fakeCapacity) Release(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok || !t.active {
		return nil
	}
	t.active = false
	if s := f.spots[t.sessionID]; s != nil && s.taken > 0 {
		s.taken--
	}
	return nil
}

func (f *fakeCapacity) takenOf(sessionID uint64) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spots[sessionID].taken
}

type fakeCredits struct {
	mu       sync.Mutex
	seq      int
	balances map[uint64]uint32
	plans    map[string]*AllocationPlan
	refunded map[string]bool
}

func newFakeCredits() *fakeCredits {
	return &fakeCredits{
		balances: make(map[uint64]uint32),
		plans:    make(map[string]*AllocationPlan),
		refunded: make(map[string]bool),
	}
}

func (f *fakeCredits) Allocate(_ context.Context, userID, bookingID uint64, amount uint32) (*AllocationPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < amount {
		return nil, ErrInsufficientCredits
	}
	f.balances[userID] -= amount
	f.seq++
	plan := &AllocationPlan{
		ID:        fmt.Sprintf("plan-%d", f.seq),
		UserID:    userID,
		BookingID: bookingID,
		Amount:    amount,
	}
	f.plans[plan.ID] = plan
	return plan, nil
}

func (f *fakeCredits) Refund(_ context.Context, allocationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, ok := f.plans[allocationID]
	if !ok || f.refunded[allocationID] {
		return nil
	}
	f.refunded[allocationID] = true
	f.balances[plan.UserID] += plan.Amount
	return nil
}

func (f *fakeCredits) balanceOf(userID uint64) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

type fakeGate struct {
	mu              sync.Mutex
	seq             uint64
	declineMonetary bool
	credits         *fakeCredits
	payments        map[uint64]*model.Payment
	allocByPayment  map[uint64]string
	refunded        map[uint64]bool
}

func newFakeGate(credits *fakeCredits) *fakeGate {
	return &fakeGate{
		credits:        credits,
		payments:       make(map[uint64]*model.Payment),
		allocByPayment: make(map[uint64]string),
		refunded:       make(map[uint64]bool),
	}
}

func (f *fakeGate) CaptureCredits(_ context.Context, bookingID uint64, plan *AllocationPlan) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	p := &model.Payment{ID: f.seq, BookingID: bookingID, Method: model.MethodCredits, Status: model.PaymentPaid}
	f.payments[p.ID] = p
	f.allocByPayment[p.ID] = plan.ID
	return p, nil
}

func (f *fakeGate) CaptureMonetary(_ context.Context, bookingID uint64, method string, amountCents uint32, _ string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declineMonetary {
		return nil, ErrPaymentDeclined
	}
	f.seq++
	p := &model.Payment{ID: f.seq, BookingID: bookingID, Method: method, AmountCents: amountCents, Status: model.PaymentPaid}
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakeGate) Refund(ctx context.Context, paymentID uint64) error {
	f.mu.Lock()
	if f.refunded[paymentID] {
		f.mu.Unlock()
		return nil
	}
	f.refunded[paymentID] = true
	allocID := f.allocByPayment[paymentID]
	f.mu.Unlock()
	if allocID != "" {
		return f.credits.Refund(ctx, allocID)
	}
	return nil
}

func (f *fakeGate) refundedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, done := range f.refunded {
		if done {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, n)
	return nil
}

func (f *fakeNotifier) byEvent(event string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notification
	for _, n := range f.events {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

type fakeWaitlist struct {
	mu      sync.Mutex
	entries []*model.WaitlistEntry
}

func (f *fakeWaitlist) ActiveBySession(_ context.Context, sessionID uint64) ([]model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.WaitlistEntry
	for _, e := range f.entries {
		if e.SessionID == sessionID && e.Status == model.WaitlistActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeWaitlist) Promote(_ context.Context, entryID uint64, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == entryID {
			if e.Status != model.WaitlistActive {
				return false, nil
			}
			e.Status = model.WaitlistPromoted
			tok := token
			e.ReservationToken = &tok
			at := time.Now()
			e.PromotedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWaitlist) PromotedBySessionUser(_ context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.SessionID == sessionID && e.UserID == userID && e.Status == model.WaitlistPromoted {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeWaitlist) ClaimPromotion(_ context.Context, entryID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == entryID {
			if e.Status != model.WaitlistPromoted {
				return false, nil
			}
			e.Status = model.WaitlistClaimed
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWaitlist) ListStalePromotions(_ context.Context, olderThan time.Duration) ([]model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []model.WaitlistEntry
	for _, e := range f.entries {
		if e.Status == model.WaitlistPromoted && e.PromotedAt != nil && !e.PromotedAt.After(cutoff) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeWaitlist) ExpirePromotion(_ context.Context, entryID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == entryID {
			if e.Status != model.WaitlistPromoted {
				return false, nil
			}
			e.Status = model.WaitlistCancelled
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWaitlist) statusOf(entryID uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == entryID {
			return e.Status
		}
	}
	return ""
}

// settleEnv bundles the fakes behind one checkout/cancel pipeline.
type settleEnv struct {
	sessions *fakeSessions
	bookings *fakeBookings
	sagas    *fakeSagas
	capacity *fakeCapacity
	credits  *fakeCredits
	gate     *fakeGate
	notifier *fakeNotifier
	waitlist *fakeWaitlist

	orch      *Orchestrator
	canceller *Canceller
}

const testGrace = 6 * time.Hour

func newSettleEnv(sessionCapacity uint32) *settleEnv {
	startsAt := time.Now().UTC().Add(48 * time.Hour)
	env := &settleEnv{
		sessions: &fakeSessions{rows: map[uint64]model.Session{
			1: {
				ID:            1,
				VenueID:       1,
				ClassTypeID:   1,
				StartsAt:      startsAt,
				EndsAt:        startsAt.Add(time.Hour),
				CapacityTotal: sessionCapacity,
				PriceCents:    1500,
				CreditCost:    3,
				Status:        model.SessionScheduled,
			},
		}},
		bookings: newFakeBookings(),
		sagas:    newFakeSagas(),
		capacity: newFakeCapacity(),
		credits:  newFakeCredits(),
		notifier: &fakeNotifier{},
		waitlist: &fakeWaitlist{},
	}
	env.capacity.spots[1] = &fakeSpot{total: sessionCapacity}
	env.gate = newFakeGate(env.credits)
	env.orch = NewOrchestrator(env.sessions, env.bookings, env.sagas,
		env.capacity, env.credits, env.gate, env.waitlist, env.notifier, testGrace)
	env.canceller = NewCanceller(env.bookings, env.sagas, env.capacity,
		env.gate, env.waitlist, env.notifier)
	return env
}
