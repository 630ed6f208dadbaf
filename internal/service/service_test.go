package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbitips/workload/internal/database"
	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/service"
	"github.com/stretchr/testify/require"
)

const table = "PublishedItems"

var (
	admin       = principal("admin-1", model.RoleAdmin)
	contributor = principal("contributor-1", model.RoleContributor)
)

func setup(t *testing.T) (*service.Catalog, database.Client, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "workload")
	require.NoError(t, err)
	filename := filepath.Join(dir, "workload.db")

	require.NoError(t, database.StormInit(filename, database.CBOR, table))
	db, err := database.StormOpen(filename, database.CBOR)
	require.NoError(t, err)

	catalog := service.NewCatalog(db, table)
	catalog.Now = func() time.Time {
		return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	}

	return catalog, db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

func principal(id string, roles ...string) model.Principal {
	return model.Principal{
		IdentityProvider: "aad",
		UserID:           id,
		UserDetails:      id + "@contoso.com",
		UserRoles:        roles,
	}
}

// seed stores the given items directly, bypassing the publication rules.
func seed(t *testing.T, db database.Client, items ...*model.PublishedItem) {
	t.Helper()

	for i, item := range items {
		if item.PublishedGuid == "" {
			item.PublishedGuid = fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
		}
		if item.Name == "" {
			item.Name = fmt.Sprintf("item %d", i)
		}
		if item.OwnerID == "" {
			item.OwnerID = contributor.UserID
			item.OwnerIdentityProvider = contributor.IdentityProvider
		}
		require.NoError(t, db.Create(context.Background(), table, item.Record()))
	}
}

func guids(items []*model.PublishedItem) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		result = append(result, item.PublishedGuid)
	}
	return result
}

// store wraps a Client to inject failures.
type store struct {
	database.Client
	create func() error
	update func() error
	delete func() error
}

func (s *store) Create(ctx context.Context, table string, r *model.Record) error {
	if s.create != nil {
		if err := s.create(); err != nil {
			return err
		}
	}
	return s.Client.Create(ctx, table, r)
}

func (s *store) Update(ctx context.Context, table string, r *model.Record) error {
	if s.update != nil {
		if err := s.update(); err != nil {
			return err
		}
	}
	return s.Client.Update(ctx, table, r)
}

func (s *store) Delete(ctx context.Context, table, partitionKey, rowKey string) error {
	if s.delete != nil {
		if err := s.delete(); err != nil {
			return err
		}
	}
	return s.Client.Delete(ctx, table, partitionKey, rowKey)
}
