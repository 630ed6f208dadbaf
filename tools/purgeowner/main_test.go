package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbitips/workload/internal/database"
	"github.com/pbitips/workload/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const table = "PublishedItems"

func TestPurge(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "workload.db")
	require.NoError(t, database.StormInit(filename, database.CBOR, table))
	db, err := database.StormOpen(filename, database.CBOR)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for _, item := range []*model.PublishedItem{
		{Type: model.ItemTypeTheme, PublishedGuid: "a", OwnerID: "spammer", OwnerIdentityProvider: "aad", CreatedDate: 100},
		{Type: model.ItemTypeLayout, PublishedGuid: "b", OwnerID: "spammer", OwnerIdentityProvider: "aad", CreatedDate: 200},
		{Type: model.ItemTypeLayout, PublishedGuid: "c", OwnerID: "spammer", OwnerIdentityProvider: "github", CreatedDate: 300},
		{Type: model.ItemTypeTheme, PublishedGuid: "d", OwnerID: "someone", OwnerIdentityProvider: "aad", CreatedDate: 100},
	} {
		require.NoError(t, db.Create(ctx, table, item.Record()))
	}

	remaining := func() []string {
		records, err := db.ScanByFilter(ctx, table, database.Filter{})
		require.NoError(t, err)

		var keys []string
		for _, r := range records {
			keys = append(keys, r.RowKey)
		}
		return keys
	}

	dryRun = true
	require.NoError(t, purge(ctx, db, table, "spammer", time.Time{}))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, remaining())
	dryRun = false

	provider = "aad"
	require.NoError(t, purge(ctx, db, table, "spammer", time.Unix(150, 0)))
	assert.ElementsMatch(t, []string{"b", "c", "d"}, remaining())
	provider = ""

	require.NoError(t, purge(ctx, db, table, "spammer", time.Time{}))
	assert.ElementsMatch(t, []string{"d"}, remaining())

	require.NoError(t, purge(ctx, db, table, "spammer", time.Time{}))
}
