package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/services"
)

// ---- mock booking repository ----

type mockBookingRepo struct {
	mu             sync.Mutex
	bookings       map[uuid.UUID]*models.Booking
	updatedFields  map[string]interface{}
	parkedFields   map[string]interface{}
	completedCount int64
	findErr        error
	updateErr      error
}

func newMockBookingRepo(bookings ...*models.Booking) *mockBookingRepo {
	m := &mockBookingRepo{bookings: make(map[uuid.UUID]*models.Booking)}
	for _, b := range bookings {
		m.bookings[b.ID] = b
	}
	return m
}

func (m *mockBookingRepo) Create(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *mockBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	b, ok := m.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return b, nil
}

func (m *mockBookingRepo) FindByIDForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	return m.FindByID(ctx, id)
}

func (m *mockBookingRepo) FindByStudentID(_ context.Context, _ uuid.UUID, _, _ int) ([]models.Booking, int64, error) {
	var out []models.Booking
	for _, b := range m.bookings {
		out = append(out, *b)
	}
	return out, int64(len(out)), nil
}

func (m *mockBookingRepo) FindByPaymentIntentID(_ context.Context, pi string) (*models.Booking, error) {
	for _, b := range m.bookings {
		if b.PaymentIntentID != nil && *b.PaymentIntentID == pi {
			return b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBookingRepo) Update(_ context.Context, b *models.Booking) error {
	m.bookings[b.ID] = b
	return nil
}

func (m *mockBookingRepo) UpdateFields(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.parkedFields = updates
	m.applyLocked(id, updates)
	return nil
}

func (m *mockBookingRepo) UpdateFieldsTx(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedFields = updates
	m.applyLocked(id, updates)
	return nil
}

func (m *mockBookingRepo) applyLocked(id uuid.UUID, updates map[string]interface{}) {
	b, ok := m.bookings[id]
	if !ok {
		return
	}
	if v, ok := updates["status"].(string); ok {
		b.Status = v
	}
	if v, ok := updates["payment_status"].(string); ok {
		b.PaymentStatus = v
	}
	if v, ok := updates["settlement_outcome"].(string); ok {
		b.SettlementOutcome = &v
	}
	if v, ok := updates["student_credit_amount_cents"].(int64); ok {
		b.StudentCreditAmountCents = v
	}
	if v, ok := updates["instructor_payout_amount_cents"].(int64); ok {
		b.InstructorPayoutAmountCents = v
	}
	if v, ok := updates["refunded_to_card_amount_cents"].(int64); ok {
		b.RefundedToCardAmountCents = v
	}
}

func (m *mockBookingRepo) CountCompletedByStudent(_ context.Context, _ uuid.UUID) (int64, error) {
	return m.completedCount, nil
}

// ---- mock credit repository (in-memory ledger) ----

type mockCreditRepo struct {
	mu      sync.Mutex
	credits []*models.PlatformCredit
}

func (m *mockCreditRepo) Create(_ context.Context, c *models.PlatformCredit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	m.credits = append(m.credits, c)
	return nil
}

func (m *mockCreditRepo) FindBySourceAndReason(_ context.Context, source uuid.UUID, reason string) (*models.PlatformCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.credits {
		if c.SourceBookingID == source && c.Reason == reason {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCreditRepo) FindAvailableByUser(_ context.Context, userID uuid.UUID) ([]models.PlatformCredit, error) {
	var out []models.PlatformCredit
	for _, c := range m.credits {
		if c.UserID == userID && c.UsedAt == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCreditRepo) FindUsedOnBooking(_ context.Context, bookingID uuid.UUID) ([]models.PlatformCredit, error) {
	var out []models.PlatformCredit
	for _, c := range m.credits {
		if c.UsedOnBookingID != nil && *c.UsedOnBookingID == bookingID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCreditRepo) MarkUsed(_ context.Context, creditID uuid.UUID, usedOn *uuid.UUID, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.credits {
		if c.ID == creditID {
			c.UsedAt = &usedAt
			c.UsedOnBookingID = usedOn
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockCreditRepo) SumAvailableByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	for _, c := range m.credits {
		if c.UserID == userID && c.UsedAt == nil {
			total += c.AmountCents
		}
	}
	return total, nil
}

func (m *mockCreditRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.PlatformCredit, error) {
	var out []models.PlatformCredit
	for _, c := range m.credits {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCreditRepo) byReason(reason string) []*models.PlatformCredit {
	var out []*models.PlatformCredit
	for _, c := range m.credits {
		if c.Reason == reason {
			out = append(out, c)
		}
	}
	return out
}

// ---- mock payment event repository ----

type mockEventRepo struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (m *mockEventRepo) Create(_ context.Context, e *models.PaymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockEventRepo) ListByBookingID(_ context.Context, bookingID uuid.UUID) ([]models.PaymentEvent, error) {
	var out []models.PaymentEvent
	for _, e := range m.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEventRepo) types() []string {
	var out []string
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

// ---- mock stripe account repository ----

type mockAccountRepo struct {
	account    *models.StripeConnectedAccount
	customer   *models.StripeCustomer
	accountErr error
}

func (m *mockAccountRepo) FindConnectedAccountByUserID(_ context.Context, _ uuid.UUID) (*models.StripeConnectedAccount, error) {
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	if m.account == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.account, nil
}

func (m *mockAccountRepo) FindCustomerByUserID(_ context.Context, _ uuid.UUID) (*models.StripeCustomer, error) {
	if m.customer == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.customer, nil
}

// ---- mock payment processor ----

type reversalCall struct {
	transferID  string
	amountCents int64
}

type transferCall struct {
	destination string
	amountCents int64
}

type mockProcessor struct {
	captureResult *services.CaptureResult

	captureErr  error
	cancelErr   error
	reverseErr  error
	refundErr   error
	transferErr error

	captureCalls  int
	cancelCalls   int
	refundCalls   int
	reversals     []reversalCall
	transfers     []transferCall
	refundReverse bool
	refundFee     bool
}

func (m *mockProcessor) CapturePaymentIntent(_ string) (*services.CaptureResult, error) {
	m.captureCalls++
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	return m.captureResult, nil
}

func (m *mockProcessor) CancelPaymentIntent(_ string) error {
	m.cancelCalls++
	return m.cancelErr
}

func (m *mockProcessor) ReverseTransfer(transferID string, amountCents int64) error {
	if m.reverseErr != nil {
		return m.reverseErr
	}
	m.reversals = append(m.reversals, reversalCall{transferID, amountCents})
	return nil
}

func (m *mockProcessor) RefundPayment(_ string, reverseTransfer, refundApplicationFee bool) error {
	m.refundCalls++
	m.refundReverse = reverseTransfer
	m.refundFee = refundApplicationFee
	return m.refundErr
}

func (m *mockProcessor) CreateTransfer(destination string, amountCents int64) (*services.TransferResult, error) {
	if m.transferErr != nil {
		return nil, m.transferErr
	}
	m.transfers = append(m.transfers, transferCall{destination, amountCents})
	return &services.TransferResult{TransferID: "tr_manual_1", AmountCents: amountCents}, nil
}

// ---- mock tx runner ----

type mockTxRunner struct{}

func (m *mockTxRunner) InTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// ---- mock event publisher ----

type mockPublisher struct {
	events []models.BookingEvent
}

func (m *mockPublisher) Publish(_ context.Context, event models.BookingEvent) error {
	m.events = append(m.events, event)
	return nil
}
