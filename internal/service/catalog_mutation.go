package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/policy"
	"github.com/pbitips/workload/internal/wlerror"
	"github.com/sirupsen/logrus"
)

type (
	// PublishParams are the caller supplied fields of a new published item.
	PublishParams struct {
		Type         string          `json:"type"`
		Name         string          `json:"name"`
		PreviewImage string          `json:"previewImage"`
		ItemLink     string          `json:"itemLink"`
		Layout       json.RawMessage `json:"layout"`
		UserThemeID  string          `json:"userThemeId"`
	}

	// UpdateParams are the editable fields of a published item. Nil fields are left unchanged.
	UpdateParams struct {
		Name         *string `json:"name"`
		PreviewImage *string `json:"previewImage"`
		Restricted   *bool   `json:"restricted"`
	}
)

// DefaultItemLink returns the blob reference of a published item stored in the default container.
func DefaultItemLink(guid string) string {
	return fmt.Sprintf(`{"container":"published","id":"%s"}`, guid)
}

// Publish stores a new item owned by the caller.
func (c *Catalog) Publish(ctx context.Context, caller model.Principal, params PublishParams) (*model.PublishedItemSummary, error) {
	t, err := model.ParseItemType(params.Type)
	if err != nil {
		return nil, wlerror.Validation("invalid item type %q", params.Type)
	}

	if !policy.CanPublish(caller, t) {
		return nil, wlerror.Forbidden("not allowed to publish %s items", t)
	}

	if err = validateName(params.Name); err != nil {
		return nil, err
	}
	if err = validatePreviewImage(params.PreviewImage); err != nil {
		return nil, err
	}
	if err = validateUserThemeID(params.UserThemeID); err != nil {
		return nil, err
	}
	if err = validateLayout(t, params.Layout); err != nil {
		return nil, err
	}

	guid := uuid.Must(uuid.NewV4()).String()
	now := c.now()

	item := &model.PublishedItem{
		Type:                  t,
		PublishedGuid:         guid,
		Name:                  params.Name,
		CreatedDate:           now,
		UpdatedDate:           now,
		OwnerID:               caller.UserID,
		OwnerIdentityProvider: caller.IdentityProvider,
		ItemLink:              params.ItemLink,
		PreviewImage:          params.PreviewImage,
		Layout:                params.Layout,
		UserThemeID:           params.UserThemeID,
	}
	if item.ItemLink == "" {
		item.ItemLink = DefaultItemLink(guid)
	}

	if err = c.db.Create(ctx, c.table, item.Record()); err != nil {
		if c.db.IsAlreadyExists(err) {
			return nil, wlerror.Conflict(err, "published item %s/%s already exists", t, guid)
		}
		return nil, wlerror.Internal(err, "could not publish item")
	}

	logrus.WithFields(logrus.Fields{
		"item_type":      t,
		"published_guid": guid,
		"owner_id":       caller.UserID,
	}).Info("item published")

	return &model.PublishedItemSummary{
		PublishedGuid:    guid,
		ItemName:         item.Name,
		Type:             t,
		PublishedAt:      now,
		ItemLink:         item.ItemLink,
		PreviewImageLink: item.PreviewImage,
		IsNewPublication: true,
	}, nil
}

// Delete removes an item. Only its owner or an admin can delete it.
// When two deletions race, the second one fails with a not found error.
func (c *Catalog) Delete(ctx context.Context, caller model.Principal, t model.ItemType, guid string) error {
	item, err := c.Get(ctx, t, guid)
	if err != nil {
		return err
	}

	if !policy.CanDelete(caller, item) {
		return wlerror.Forbidden("not allowed to delete published item %s/%s", t, guid)
	}

	if err = c.db.Delete(ctx, c.table, string(t), guid); err != nil {
		if c.db.IsNotFound(err) {
			return wlerror.NotFound("published item %s/%s not found", t, guid)
		}
		return wlerror.Internal(err, "could not delete published item")
	}

	logrus.WithFields(logrus.Fields{
		"item_type":      t,
		"published_guid": guid,
		"owner_id":       item.OwnerID,
		"deleted_by":     caller.UserID,
	}).Info("published item deleted")

	return nil
}

// Update edits an item. Renaming and changing the preview is allowed to its owner or an admin,
// restricting it to admins only.
func (c *Catalog) Update(ctx context.Context, caller model.Principal, t model.ItemType, guid string, params UpdateParams) (*model.PublishedItem, error) {
	if params.Name == nil && params.PreviewImage == nil && params.Restricted == nil {
		return nil, wlerror.Validation("nothing to update")
	}

	item, err := c.Get(ctx, t, guid)
	if err != nil {
		return nil, err
	}

	if (params.Name != nil || params.PreviewImage != nil) && !policy.CanEdit(caller, item) {
		return nil, wlerror.Forbidden("not allowed to edit published item %s/%s", t, guid)
	}
	if params.Restricted != nil && !policy.CanModerate(caller) {
		return nil, wlerror.Forbidden("only admins can restrict published items")
	}

	if params.Name != nil {
		if err = validateName(*params.Name); err != nil {
			return nil, err
		}
		item.Name = *params.Name
	}
	if params.PreviewImage != nil {
		if err = validatePreviewImage(*params.PreviewImage); err != nil {
			return nil, err
		}
		item.PreviewImage = *params.PreviewImage
	}
	if params.Restricted != nil {
		item.Restricted = *params.Restricted
	}

	if err = c.save(ctx, item); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"item_type":      t,
		"published_guid": guid,
		"updated_by":     caller.UserID,
	}).Info("published item updated")

	return item, nil
}

// RecordDownload increments the downloads counter of an item.
func (c *Catalog) RecordDownload(ctx context.Context, t model.ItemType, guid string) (*model.PublishedItem, error) {
	return c.increment(ctx, t, guid, func(item *model.PublishedItem) {
		item.Downloads++
	})
}

// RecordFavorite increments the favorites counter of an item.
func (c *Catalog) RecordFavorite(ctx context.Context, t model.ItemType, guid string) (*model.PublishedItem, error) {
	return c.increment(ctx, t, guid, func(item *model.PublishedItem) {
		item.FavoriteCount++
	})
}

// increment applies the counter change on a fresh read until the optimistic write succeeds.
func (c *Catalog) increment(ctx context.Context, t model.ItemType, guid string, apply func(*model.PublishedItem)) (*model.PublishedItem, error) {
	var err error
	for attempt := 1; attempt <= counterAttempts; attempt++ {
		var item *model.PublishedItem
		item, err = c.Get(ctx, t, guid)
		if err != nil {
			return nil, err
		}

		apply(item)
		if err = c.save(ctx, item); err == nil {
			return item, nil
		}
		if !wlerror.Is(err, wlerror.KindConflict) {
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"item_type":      t,
			"published_guid": guid,
			"attempt":        attempt,
		}).Debug("counter update conflict")
	}
	return nil, err
}

// save writes the item back, refreshing its updated date.
func (c *Catalog) save(ctx context.Context, item *model.PublishedItem) error {
	item.UpdatedDate = c.now()
	if item.UpdatedDate < item.CreatedDate {
		item.UpdatedDate = item.CreatedDate
	}

	r := item.Record()
	if err := c.db.Update(ctx, c.table, r); err != nil {
		switch {
		case c.db.IsConcurrentModification(err):
			return wlerror.Conflict(err, "published item %s/%s was modified concurrently", item.Type, item.PublishedGuid)
		case c.db.IsNotFound(err):
			return wlerror.NotFound("published item %s/%s not found", item.Type, item.PublishedGuid)
		default:
			return wlerror.Internal(err, "could not save published item")
		}
	}

	item.Version = r.Version
	return nil
}
