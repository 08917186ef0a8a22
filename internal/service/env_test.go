package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm/internal/audit"
	"crm/internal/auth"
	"crm/internal/model"
	"crm/internal/repository"
	"crm/internal/service"
	"crm/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeRecorder) Record(_ context.Context, e audit.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeRecorder) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func (f *fakeRecorder) last() audit.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[len(f.entries)-1]
}

type fakeNotifier struct {
	err  error
	sent []uuid.UUID
}

func (f *fakeNotifier) SendQuotation(_ context.Context, _ *model.Lead, q *model.Quotation) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, q.ID)
	return nil
}

var errSMTPDown = errors.New("smtp: connection refused")

type env struct {
	recorder   *fakeRecorder
	notifier   *fakeNotifier
	tokens     *auth.TokenService
	users      repository.UserRepository
	roles      repository.RoleRepository
	auditRepo  repository.AuditRepository
	txm        repository.TransactionManager
	Leads      service.LeadService
	Quotations service.QuotationService
	Roles      service.RoleService
	Users      service.UserService
	Auth       service.AuthService
	Audit      service.AuditService
}

var adminSeed = service.AdminSeed{Username: "admin@example.com", Password: "admin123", Role: "Admin"}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)

	e := &env{
		recorder:  &fakeRecorder{},
		notifier:  &fakeNotifier{},
		tokens:    auth.NewTokenService("test-secret", time.Hour),
		users:     repository.NewUserRepository(db),
		roles:     repository.NewRoleRepository(db),
		auditRepo: repository.NewAuditRepository(db),
	}
	txm := repository.NewTransactionManager(db)
	e.txm = txm
	leads := repository.NewLeadRepository(db)
	quotations := repository.NewQuotationRepository(db)

	e.Leads = service.NewLeadService(leads, quotations, txm, e.recorder)
	e.Quotations = service.NewQuotationService(quotations, leads, txm, e.recorder, e.notifier, []string{"Manager"})
	e.Roles = service.NewRoleService(e.roles, e.users, txm, e.recorder)
	e.Users = service.NewUserService(e.users, e.roles, txm, e.recorder)
	e.Auth = service.NewAuthService(e.users, e.roles, txm, e.tokens, e.recorder, "Sales Rep")
	e.Audit = service.NewAuditService(e.auditRepo, e.users)

	require.NoError(t, e.Roles.SeedDefaults(context.Background(), adminSeed))
	return e
}

// actor returns an identity holding the named role without a stored user.
func actor(role string) *auth.Identity {
	return &auth.Identity{ID: uuid.New(), Username: role + "@example.com", Role: auth.RoleClaim{Name: role}}
}

func strPtr(s string) *string { return &s }
