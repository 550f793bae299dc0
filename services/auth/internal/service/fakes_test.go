package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudmarket/backend/pkg/accounts"
	"github.com/cloudmarket/backend/services/auth/internal/domain"
	"github.com/cloudmarket/backend/services/auth/internal/messenger"
)

type fakeOTPRepo struct {
	mu         sync.Mutex
	challenges []domain.Challenge
	markErr    error
}

func (r *fakeOTPRepo) Create(_ context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = int64(len(r.challenges) + 1)
	r.challenges = append(r.challenges, *c)
	return nil
}

func (r *fakeOTPRepo) Latest(_ context.Context, phone string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.challenges) - 1; i >= 0; i-- {
		if r.challenges[i].Phone == phone {
			c := r.challenges[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeOTPRepo) MarkConsumed(_ context.Context, id int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return false, r.markErr
	}
	for i := range r.challenges {
		c := &r.challenges[i]
		if c.ID == id && !c.Consumed {
			c.Consumed = true
			c.ConsumedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeOTPRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.challenges[:0]
	var n int64
	for _, c := range r.challenges {
		if c.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.challenges = kept
	return n, nil
}

func (r *fakeOTPRepo) stored() []domain.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Challenge(nil), r.challenges...)
}

type fakeLimiter struct {
	mu       sync.Mutex
	denied   map[string]bool
	err      error
	keys     []string
	cleanups int
}

func (l *fakeLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.err != nil {
		return false, l.err
	}
	return !l.denied[key], nil
}

func (l *fakeLimiter) CleanupExpired(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanups++
	return 0, nil
}

type fakeDirectory struct {
	mu      sync.Mutex
	byID    map[int64]*accounts.Account
	nextID  int64
	lookups int
	findErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{byID: map[int64]*accounts.Account{}, nextID: 100}
}

func (d *fakeDirectory) add(a *accounts.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[a.ID] = a
}

func (d *fakeDirectory) FindByPhone(_ context.Context, phone string) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	for _, a := range d.byID {
		if a.Phone != nil && *a.Phone == phone {
			return a, nil
		}
	}
	return nil, nil
}

func (d *fakeDirectory) FindByID(_ context.Context, id int64) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	return d.byID[id], nil
}

func (d *fakeDirectory) ChatHandleForAccount(_ context.Context, id int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a := d.byID[id]; a != nil {
		return a.ChatHandle(), nil
	}
	return "", nil
}

func (d *fakeDirectory) CreateWithPhone(_ context.Context, phone string) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	a := &accounts.Account{ID: d.nextID, Phone: &phone, CreatedAt: time.Now()}
	d.byID[a.ID] = a
	return a, nil
}

func (d *fakeDirectory) UpsertTelegram(_ context.Context, p accounts.TelegramProfile) (*accounts.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.byID {
		if a.TelegramID != nil && *a.TelegramID == p.TelegramID {
			a.FirstName = &p.FirstName
			return a, nil
		}
	}
	d.nextID++
	tgID := p.TelegramID
	a := &accounts.Account{ID: d.nextID, TelegramID: &tgID, Username: &p.Username, FirstName: &p.FirstName}
	d.byID[a.ID] = a
	return a, nil
}

type sentCode struct {
	to   messenger.Recipient
	code string
}

type fakeMessenger struct {
	mu    sync.Mutex
	sent  []sentCode
	err   error
	block bool
}

func (m *fakeMessenger) SendLoginCode(ctx context.Context, to messenger.Recipient, code string, _ time.Duration) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCode{to: to, code: code})
	return m.err
}

func (m *fakeMessenger) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].code
}

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject: subject, data: data})
	return p.err
}

var errBoom = errors.New("boom")
