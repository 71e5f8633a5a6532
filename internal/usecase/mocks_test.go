//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// MockTxManager runs the callback without a real transaction.
type MockTxManager struct {
	WithTxFunc func(ctx context.Context, opt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, opt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, opt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Payment repository ----

// MockPaymentRepo is an in-memory PaymentRepository whose conditional update
// honors the same terminal-state guard as the SQL implementation, so races
// and redeliveries behave like production.
type MockPaymentRepo struct {
	mu    sync.Mutex
	store map[string]*model.Payment // by ID

	SaveFunc                      func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	UpdateStatusIfNotTerminalFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, txnID, reason string, completedAt *time.Time) (bool, error)
	SetInvoiceIDFunc              func(ctx context.Context, tx repository.Tx, id, invoiceID string) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) UpdateStatusIfNotTerminal(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, txnID, reason string, completedAt *time.Time) (bool, error) {
	if m.UpdateStatusIfNotTerminalFunc != nil {
		return m.UpdateStatusIfNotTerminalFunc(ctx, tx, id, status, txnID, reason, completedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, nil
	}
	if p.Status.IsTerminal() {
		return false, nil
	}
	p.Status = status
	if txnID != "" {
		p.TxnID = txnID
	}
	if reason != "" {
		p.FailureReason = reason
	}
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPaymentRepo) SetInvoiceID(ctx context.Context, tx repository.Tx, id, invoiceID string) error {
	if m.SetInvoiceIDFunc != nil {
		return m.SetInvoiceIDFunc(ctx, tx, id, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.InvoiceID = &invoiceID
	return nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.store {
		if !p.Status.IsTerminal() && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Subscription repository ----

type MockSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription

	MarkPaidFunc func(ctx context.Context, tx repository.Tx, id, orderID string, startAt, endAt, renewalAt time.Time) (bool, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.OrderID == orderID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindActiveByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.AccountID == accountID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, to model.SubscriptionStatus, reason string, from ...model.SubscriptionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if s.Status == f {
			s.Status = to
			s.FailureReason = reason
			s.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *MockSubscriptionRepo) SupersedeOthers(ctx context.Context, tx repository.Tx, accountID, keepID, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if s.AccountID == accountID && s.ID != keepID && s.Status == model.SubscriptionStatusActive {
			s.Status = model.SubscriptionStatusCancelled
			s.FailureReason = reason
			s.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *MockSubscriptionRepo) MarkPaid(ctx context.Context, tx repository.Tx, id, orderID string, startAt, endAt, renewalAt time.Time) (bool, error) {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, tx, id, orderID, startAt, endAt, renewalAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return false, nil
	}
	if s.LastPaidOrderID != nil && *s.LastPaidOrderID == orderID {
		return false, nil
	}
	if s.Status != model.SubscriptionStatusPendingPayment && s.Status != model.SubscriptionStatusActive {
		return false, nil
	}
	s.Status = model.SubscriptionStatusActive
	s.LastPaidOrderID = &orderID
	if s.StartAt == nil {
		s.StartAt = &startAt
	}
	s.EndAt = &endAt
	s.RenewalAt = &renewalAt
	s.FailureReason = ""
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockSubscriptionRepo) ListPendingPaymentOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusPendingPayment && s.CreatedAt.Before(olderThan) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Account repository ----

type MockAccountRepo struct {
	mu    sync.Mutex
	store map[string]*model.Account
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func NewMockAccountRepo() *MockAccountRepo {
	return &MockAccountRepo{store: make(map[string]*model.Account)}
}

func (m *MockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.store {
		if other.Email == a.Email && other.ID != a.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockAccountRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, to model.AccountStatus, from ...model.AccountStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if a.Status == f {
			a.Status = to
			a.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *MockAccountRepo) SetCurrentPlan(ctx context.Context, tx repository.Tx, id, planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.PlanID = &planID
	return nil
}

func (m *MockAccountRepo) AddToTotalPayments(ctx context.Context, tx repository.Tx, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.TotalPayments += amount
	return nil
}

// ---- Plan repository ----

type MockPlanRepo struct {
	mu    sync.Mutex
	store map[string]*model.PricingPlan
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: make(map[string]*model.PricingPlan)}
}

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PricingPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PricingPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PricingPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PricingPlan
	for _, p := range m.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPlanRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	return nil
}

// ---- Invoice repository ----

type MockInvoiceRepo struct {
	mu        sync.Mutex
	store     map[string]*model.Invoice // by ID
	sequences map[string]int64          // by period

	SaveFunc         func(ctx context.Context, tx repository.Tx, inv *model.Invoice) error
	NextSequenceFunc func(ctx context.Context, tx repository.Tx, period string) (int64, error)
}

var _ repository.InvoiceRepository = (*MockInvoiceRepo)(nil)

func NewMockInvoiceRepo() *MockInvoiceRepo {
	return &MockInvoiceRepo{store: make(map[string]*model.Invoice), sequences: make(map[string]int64)}
}

func (m *MockInvoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, inv)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.store {
		if other.ID != inv.ID && (other.Number == inv.Number || other.PaymentID == inv.PaymentID) {
			return domain.ErrAlreadyExists
		}
	}
	cp := *inv
	m.store[inv.ID] = &cp
	return nil
}

func (m *MockInvoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *MockInvoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.store {
		if inv.PaymentID == paymentID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockInvoiceRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, offset, limit int) ([]*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Invoice
	for _, inv := range m.store {
		if inv.AccountID == accountID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockInvoiceRepo) NextSequence(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	if m.NextSequenceFunc != nil {
		return m.NextSequenceFunc(ctx, tx, period)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[period]++
	return m.sequences[period], nil
}

// ---- Outbox repository ----

type MockOutboxRepo struct {
	mu       sync.Mutex
	Messages []*model.OutboxMessage
}

var _ repository.OutboxRepository = (*MockOutboxRepo)(nil)

func NewMockOutboxRepo() *MockOutboxRepo { return &MockOutboxRepo{} }

func (m *MockOutboxRepo) Enqueue(ctx context.Context, tx repository.Tx, msg *model.OutboxMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.Messages {
		if other.ID == msg.ID {
			return false, nil
		}
	}
	cp := *msg
	m.Messages = append(m.Messages, &cp)
	return true, nil
}

func (m *MockOutboxRepo) ClaimUndelivered(ctx context.Context, tx repository.Tx, maxAttempts, limit int) ([]*model.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OutboxMessage
	for _, msg := range m.Messages {
		if msg.SentAt == nil && msg.Attempts < maxAttempts {
			msg.Attempts++
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockOutboxRepo) MarkDelivered(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Messages {
		if msg.ID == id {
			now := time.Now()
			msg.SentAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

// Kinds returns the kinds of all enqueued messages, for assertions.
func (m *MockOutboxRepo) Kinds() []model.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.NotificationKind, 0, len(m.Messages))
	for _, msg := range m.Messages {
		out = append(out, msg.Kind)
	}
	return out
}

// ---- Payment gateway ----

type MockGateway struct {
	mu sync.Mutex

	CreateOrderFunc    func(ctx context.Context, req adapter.OrderRequest) (string, error)
	GetOrderStatusFunc func(ctx context.Context, orderID string) (adapter.OrderStatus, error)

	Created []adapter.OrderRequest
	Polled  []string
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mockpay" }

func (m *MockGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (string, error) {
	m.mu.Lock()
	m.Created = append(m.Created, req)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return "session-" + req.OrderID, nil
}

func (m *MockGateway) GetOrderStatus(ctx context.Context, orderID string) (adapter.OrderStatus, error) {
	m.mu.Lock()
	m.Polled = append(m.Polled, orderID)
	m.mu.Unlock()
	if m.GetOrderStatusFunc != nil {
		return m.GetOrderStatusFunc(ctx, orderID)
	}
	return adapter.OrderStatus{Status: "pending"}, nil
}

// ---- Locker ----

type MockLocker struct {
	mu     sync.Mutex
	held   map[string]string
	Denied bool // when set, TryLock always fails
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: make(map[string]string)} }

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Denied {
		return "", domain.ErrLockNotAcquired
	}
	if _, taken := m.held[key]; taken {
		return "", domain.ErrLockNotAcquired
	}
	token := uuid.NewString()
	m.held[key] = token
	return token, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
		return nil
	}
	return fmt.Errorf("lock %q not held with this token", key)
}

// ---- Audit queries ----

type MockAuditQueries struct {
	Sums      repository.LedgerSums
	ByAccount map[string]repository.LedgerSums
}

var _ repository.AuditQueries = (*MockAuditQueries)(nil)

func (m *MockAuditQueries) SumLedger(ctx context.Context, tx repository.Tx) (repository.LedgerSums, error) {
	return m.Sums, nil
}

func (m *MockAuditQueries) SumLedgerByAccount(ctx context.Context, tx repository.Tx) (map[string]repository.LedgerSums, error) {
	return m.ByAccount, nil
}
