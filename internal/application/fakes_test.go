package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/application"
	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

type fixture struct {
	service     *application.Service
	accounts    *fakeAccounts
	revocations *fakeRevocations
	codes       *fakeCodes
	clock       *fakeClock
}

func newFixture() *fixture {
	return newFixtureWithConfig(defaultTestConfig())
}

func defaultTestConfig() application.Config {
	return application.Config{
		DefaultRole: domain.RoleCustomer,
		Policy:      domain.NewSecurityPolicy(5, 30*time.Minute, 60*time.Minute),
	}
}

func newFixtureWithConfig(cfg application.Config) *fixture {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	accounts := &fakeAccounts{byID: map[uuid.UUID]domain.Account{}}
	revocations := &fakeRevocations{revoked: map[string]bool{}}
	codes := &fakeCodes{next: "4821", ttl: 10 * time.Minute}
	tokens := &fakeTokens{clock: clock, issued: map[string]ports.TokenClaims{}}

	svc := application.NewService(application.Dependencies{
		Config:      cfg,
		Accounts:    accounts,
		Revocations: revocations,
		Hasher:      &fakeHasher{},
		Tokens:      tokens,
		Codes:       codes,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:       clock.Now,
	})
	return &fixture{
		service:     svc,
		accounts:    accounts,
		revocations: revocations,
		codes:       codes,
		clock:       clock,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAccounts struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]domain.Account
	events []ports.OutboxEvent
}

func (f *fakeAccounts) Create(ctx context.Context, account domain.Account, events ...ports.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == account.Email {
			return domain.ErrConflict
		}
	}
	f.byID[account.ID] = account
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (f *fakeAccounts) GetByID(_ context.Context, accountID uuid.UUID) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[accountID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) Update(ctx context.Context, accountID uuid.UUID, mutate ports.AccountMutation) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[accountID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	events, err := mutate(&a)
	if err != nil {
		return domain.Account{}, err
	}
	f.byID[accountID] = a
	f.events = append(f.events, events...)
	return a, nil
}

func (f *fakeAccounts) get(email string) domain.Account {
	a, _ := f.GetByEmail(context.Background(), email)
	return a
}

func (f *fakeAccounts) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeAccounts) eventsOfType(eventType string) []ports.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ports.OutboxEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeAccounts) lastEvent() ports.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (f *fakeRevocations) MarkRevoked(_ context.Context, tokenID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[tokenID] = true
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[tokenID], nil
}

type fakeHasher struct{}

func (f *fakeHasher) Hash(password string) (string, error) { return "hash:" + password, nil }

func (f *fakeHasher) Compare(hash, password string) error {
	if hash != "hash:"+password {
		return errors.New("hash mismatch")
	}
	return nil
}

type fakeCodes struct {
	mu   sync.Mutex
	next string
	ttl  time.Duration
}

func (f *fakeCodes) Generate(now time.Time) (domain.OneTimeCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.OneTimeCode{Code: f.next, ExpiresAt: now.Add(f.ttl)}, nil
}

func (f *fakeCodes) set(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = code
}

type fakeTokens struct {
	mu     sync.Mutex
	clock  *fakeClock
	issued map[string]ports.TokenClaims
}

func (f *fakeTokens) issue(claims ports.TokenClaims, ttl time.Duration) ports.IssuedToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	claims.TokenID = uuid.NewString()
	claims.IssuedAt = now
	claims.ExpiresAt = now.Add(ttl)
	token := string(claims.Kind) + "." + claims.TokenID
	f.issued[token] = claims
	return ports.IssuedToken{Token: token, TokenID: claims.TokenID, ExpiresAt: claims.ExpiresAt}
}

func (f *fakeTokens) IssueAccessToken(subject ports.AccessSubject) (ports.IssuedToken, error) {
	return f.issue(ports.TokenClaims{
		Kind:      ports.TokenKindAccess,
		AccountID: subject.AccountID,
		Email:     subject.Email,
		Roles:     subject.Roles,
		VendorID:  subject.VendorID,
	}, f.AccessTTL()), nil
}

func (f *fakeTokens) IssueRefreshToken(accountID uuid.UUID) (ports.IssuedToken, error) {
	return f.issue(ports.TokenClaims{Kind: ports.TokenKindRefresh, AccountID: accountID}, f.RefreshTTL()), nil
}

func (f *fakeTokens) Verify(token string) (ports.TokenClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.issued[token]
	if !ok {
		return ports.TokenClaims{}, domain.ErrTokenMalformed
	}
	if !f.clock.Now().Before(claims.ExpiresAt) {
		return ports.TokenClaims{}, domain.ErrTokenExpired
	}
	return claims, nil
}

func (f *fakeTokens) AccessTTL() time.Duration  { return 24 * time.Hour }
func (f *fakeTokens) RefreshTTL() time.Duration { return 30 * 24 * time.Hour }
