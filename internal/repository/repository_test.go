package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm/internal/model"
	"crm/internal/repository"
	"crm/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func TestLeadListFilters(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLeadRepository(testutil.NewDB(t))

	leads := []model.Lead{
		{Name: "Alice Smith", Email: strPtr("alice@acme.io"), UTMSource: strPtr("Google")},
		{Name: "Bob Stone", Email: strPtr("bob@acme.io"), UTMSource: strPtr("newsletter"), Status: model.LeadStatusContacted},
		{Name: "Carol Smithers", Phone: strPtr("+15550001"), UTMSource: strPtr("google-ads")},
	}
	for i := range leads {
		require.NoError(t, repo.Create(ctx, &leads[i]))
	}

	got, err := repo.List(ctx, repository.LeadFilter{Name: "smith"}, 0, 100)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.List(ctx, repository.LeadFilter{Name: "smith", UTMSource: "GOOGLE-"}, 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Carol Smithers", got[0].Name)

	got, err = repo.List(ctx, repository.LeadFilter{Status: string(model.LeadStatusContacted)}, 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob Stone", got[0].Name)

	got, err = repo.List(ctx, repository.LeadFilter{}, 1, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob Stone", got[0].Name)
}

func TestLeadDefaultsToNew(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLeadRepository(testutil.NewDB(t))

	lead := &model.Lead{Name: "Dana"}
	require.NoError(t, repo.Create(ctx, lead))

	stored, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusNew, stored.Status)

	require.NoError(t, repo.Delete(ctx, lead.ID))
	_, err = repo.GetByID(ctx, lead.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestQuotationLineItemsAndPriceFilter(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	leads := repository.NewLeadRepository(db)
	repo := repository.NewQuotationRepository(db)

	lead := &model.Lead{Name: "Eve"}
	require.NoError(t, leads.Create(ctx, lead))

	cheap := &model.Quotation{LeadID: lead.ID, LineItems: []model.QuotationLineItem{
		{Position: 0, Description: "Audit", Quantity: 1, Price: decimal.RequireFromString("50")},
	}}
	cheap.RecalculateTotal()
	require.NoError(t, repo.Create(ctx, cheap))

	pricey := &model.Quotation{LeadID: lead.ID, LineItems: []model.QuotationLineItem{
		{Position: 0, Description: "Build", Quantity: 2, Price: decimal.RequireFromString("400")},
	}}
	pricey.RecalculateTotal()
	require.NoError(t, repo.Create(ctx, pricey))

	from := decimal.RequireFromString("100")
	got, err := repo.List(ctx, repository.QuotationFilter{PriceFrom: &from}, 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pricey.ID, got[0].ID)

	got, err = repo.List(ctx, repository.QuotationFilter{LeadID: &lead.ID, Status: string(model.QuotationDraft)}, 0, 100)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	stored, err := repo.GetByID(ctx, cheap.ID)
	require.NoError(t, err)
	stored.LineItems[0].Quantity = 3
	stored.LineItems = append(stored.LineItems, model.QuotationLineItem{
		Position: 1, Description: "Report", Quantity: 1, Price: decimal.RequireFromString("25.50"),
	})
	stored.RecalculateTotal()
	require.NoError(t, repo.SaveLineItems(ctx, stored))

	reloaded, err := repo.GetByID(ctx, cheap.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.LineItems, 2)
	assert.Equal(t, 3, reloaded.LineItems[0].Quantity)
	assert.Equal(t, "Report", reloaded.LineItems[1].Description)
	assert.True(t, reloaded.TotalPrice.Equal(reloaded.ComputeTotal()), reloaded.TotalPrice.String())
	assert.True(t, reloaded.TotalPrice.Equal(decimal.RequireFromString("175.5")), reloaded.TotalPrice.String())

	require.NoError(t, repo.Delete(ctx, cheap.ID))
	_, err = repo.GetByID(ctx, cheap.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := repo.CountByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRoleDeleteClearsPermissions(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewRoleRepository(db)

	perm := &model.Permission{Name: "GET:/leads/", Description: "Permission to GET:/leads/"}
	require.NoError(t, repo.FindOrCreatePermission(ctx, perm))
	again := &model.Permission{Name: "GET:/leads/"}
	require.NoError(t, repo.FindOrCreatePermission(ctx, again))
	assert.Equal(t, perm.ID, again.ID)

	role := &model.Role{Name: "Support"}
	require.NoError(t, repo.Create(ctx, role))
	require.NoError(t, repo.AddPermission(ctx, role, perm))

	stored, err := repo.FindByName(ctx, "Support")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET:/leads/"}, stored.PermissionNames())

	require.NoError(t, repo.Delete(ctx, stored))

	var links int64
	require.NoError(t, db.Table("role_permissions").Count(&links).Error)
	assert.Zero(t, links)

	perms, err := repo.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}

func TestUserUsernamesByIDs(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	roles := repository.NewRoleRepository(db)
	users := repository.NewUserRepository(db)

	role := &model.Role{Name: "Sales Rep"}
	require.NoError(t, roles.Create(ctx, role))
	user := &model.User{Username: "rep@example.com", Password: "x", RoleID: role.ID}
	require.NoError(t, users.Create(ctx, user))

	count, err := users.CountByRole(ctx, role.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	ghost := uuid.New()
	names, err := users.UsernamesByIDs(ctx, []uuid.UUID{user.ID, ghost})
	require.NoError(t, err)
	assert.Equal(t, "rep@example.com", names[user.ID])
	_, ok := names[ghost]
	assert.False(t, ok)

	loaded, err := users.GetByUsername(ctx, "rep@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Sales Rep", loaded.Role.Name)
}

func TestUniqueViolationsAreTranslated(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	roles := repository.NewRoleRepository(db)
	users := repository.NewUserRepository(db)

	role := &model.Role{Name: "Sales Rep"}
	require.NoError(t, roles.Create(ctx, role))
	require.ErrorIs(t, roles.Create(ctx, &model.Role{Name: "Sales Rep"}), gorm.ErrDuplicatedKey)

	require.NoError(t, users.Create(ctx, &model.User{Username: "rep@example.com", Password: "x", RoleID: role.ID}))
	err := users.Create(ctx, &model.User{Username: "rep@example.com", Password: "y", RoleID: role.ID})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestAuditListFiltersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAuditRepository(testutil.NewDB(t))

	leadID := uuid.New()
	base := time.Now().Add(-time.Hour)
	entries := []model.AuditLog{
		{EntityType: model.EntityLead, EntityID: leadID, Action: model.ActionCreateLead, CreatedAt: base},
		{EntityType: model.EntityLead, EntityID: leadID, Action: model.ActionUpdateLead, Context: strPtr("bulk import"), CreatedAt: base.Add(time.Minute)},
		{EntityType: model.EntityRole, EntityID: uuid.New(), Action: model.ActionCreateRole, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range entries {
		require.NoError(t, repo.Log(ctx, &entries[i]))
	}

	got, err := repo.List(ctx, repository.AuditFilter{EntityID: &leadID}, 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ActionUpdateLead, got[0].Action)

	got, err = repo.List(ctx, repository.AuditFilter{Action: "create"}, 0, 100)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.List(ctx, repository.AuditFilter{Context: "IMPORT"}, 0, 100)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	future := time.Now().Add(time.Hour)
	got, err = repo.List(ctx, repository.AuditFilter{DateFrom: &future}, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.Delete(ctx, entries[0].ID))
	_, err = repo.GetByID(ctx, entries[0].ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
