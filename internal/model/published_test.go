package model_test

import (
	"encoding/json"
	"testing"

	"github.com/pbitips/workload/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestParseItemType(t *testing.T) {
	for s, expected := range map[string]model.ItemType{
		"theme":    model.ItemTypeTheme,
		"Layout":   model.ItemTypeLayout,
		" PROJECT": model.ItemTypeProject,
		"scrims":   model.ItemTypeScrims,
	} {
		v, err := model.ParseItemType(s)
		assert.NoError(t, err, s)
		assert.Equal(t, expected, v)
	}

	_, err := model.ParseItemType("report")
	assert.Equal(t, model.ErrUnknownItemType, errors.Cause(err))
}

func TestPublishedItemRecord(t *testing.T) {
	item := &model.PublishedItem{
		Type:                  model.ItemTypeLayout,
		PublishedGuid:         "0b6c7c86-4d5b-4a3c-8a3c-4a1c2e3f4d5e",
		Name:                  "Grid",
		Downloads:             3,
		CreatedDate:           10,
		UpdatedDate:           12,
		OwnerID:               "user-1",
		OwnerIdentityProvider: "aad",
		Layout:                json.RawMessage(`{"columns":2}`),
		Version:               4,
	}

	r := item.Record()
	assert.Equal(t, "layout", r.PartitionKey)
	assert.Equal(t, item.PublishedGuid, r.RowKey)
	assert.Equal(t, int64(4), r.Version)

	// Codecs may hand numbers back with another width.
	r.Properties[model.PropertyDownloads] = uint8(3)
	r.Properties[model.PropertyCreatedDate] = float64(10)

	var v model.PublishedItem
	assert.NoError(t, v.FromRecord(r))
	assert.Equal(t, *item, v)
}

func TestPublishedItemFromRecord_Garbage(t *testing.T) {
	var v model.PublishedItem

	err := v.FromRecord(&model.Record{PartitionKey: "report", RowKey: "x"})
	assert.Error(t, err)

	err = v.FromRecord(&model.Record{
		PartitionKey: "theme",
		RowKey:       "x",
		Properties:   model.Properties{model.PropertyLayout: "{not json", model.PropertyRestricted: "true"},
	})
	assert.NoError(t, err)
	assert.Nil(t, v.Layout)
	assert.True(t, v.Restricted)
	assert.Equal(t, int64(0), v.Downloads)
}
