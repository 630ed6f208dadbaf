package model

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// An ItemType is the kind of a published item. It is also the partition key of the item.
type ItemType string

// Published item types.
const (
	ItemTypeTheme   ItemType = "theme"
	ItemTypeLayout  ItemType = "layout"
	ItemTypeProject ItemType = "project"
	ItemTypeScrims  ItemType = "scrims"
)

// ItemTypes lists all published item types, in partition scan order.
var ItemTypes = []ItemType{ItemTypeTheme, ItemTypeLayout, ItemTypeProject, ItemTypeScrims}

// ErrUnknownItemType is returned when an item type can't be parsed.
var ErrUnknownItemType = errors.New("unknown item type")

// ParseItemType parses the given value case-insensitively.
func ParseItemType(s string) (ItemType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range ItemTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownItemType, "%q", s)
}

// Stored property names of a published item.
const (
	PropertyPublishedGuid         = "PublishedGuid"
	PropertyName                  = "Name"
	PropertyDownloads             = "Downloads"
	PropertyFavoriteCount         = "FavoriteCount"
	PropertyCreatedDate           = "CreatedDate"
	PropertyUpdatedDate           = "UpdatedDate"
	PropertyOwnerID               = "OwnerId"
	PropertyOwnerIdentityProvider = "OwnerIdentityProvider"
	PropertyItemLink              = "ItemLink"
	PropertyPreviewImage          = "PreviewImage"
	PropertyRestricted            = "Restricted"
	PropertyLayout                = "Layout"
	PropertyUserThemeID           = "UserThemeId"
)

// A PublishedItem represents a catalog record and the rendered API response.
type PublishedItem struct {
	Type                  ItemType        `json:"type"`
	PublishedGuid         string          `json:"publishedGuid"`
	Name                  string          `json:"name"`
	Downloads             int64           `json:"downloads"`
	FavoriteCount         int64           `json:"favoriteCount"`
	CreatedDate           int64           `json:"createdDate"`
	UpdatedDate           int64           `json:"updatedDate"`
	OwnerID               string          `json:"ownerId"`
	OwnerIdentityProvider string          `json:"ownerIdentityProvider"`
	ItemLink              string          `json:"itemLink,omitempty"`
	PreviewImage          string          `json:"previewImage,omitempty"`
	Restricted            bool            `json:"restricted"`
	Layout                json.RawMessage `json:"layout,omitempty"`
	UserThemeID           string          `json:"userThemeId,omitempty"`

	// Version is the optimistic lock of the stored record.
	Version int64 `json:"-"`
}

var _ Storable = (*PublishedItem)(nil)

// PartitionKey implements Storable.
func (i *PublishedItem) PartitionKey() string {
	return string(i.Type)
}

// RowKey implements Storable.
func (i *PublishedItem) RowKey() string {
	return i.PublishedGuid
}

// Record implements Storable.
func (i *PublishedItem) Record() *Record {
	return &Record{
		PartitionKey: i.PartitionKey(),
		RowKey:       i.RowKey(),
		Version:      i.Version,
		Properties: Properties{
			PropertyPublishedGuid:         i.PublishedGuid,
			PropertyName:                  i.Name,
			PropertyDownloads:             i.Downloads,
			PropertyFavoriteCount:         i.FavoriteCount,
			PropertyCreatedDate:           i.CreatedDate,
			PropertyUpdatedDate:           i.UpdatedDate,
			PropertyOwnerID:               i.OwnerID,
			PropertyOwnerIdentityProvider: i.OwnerIdentityProvider,
			PropertyItemLink:              i.ItemLink,
			PropertyPreviewImage:          i.PreviewImage,
			PropertyRestricted:            i.Restricted,
			PropertyLayout:                string(i.Layout),
			PropertyUserThemeID:           i.UserThemeID,
		},
	}
}

// FromRecord implements Storable.
func (i *PublishedItem) FromRecord(r *Record) error {
	t, err := ParseItemType(r.PartitionKey)
	if err != nil {
		return errors.Wrap(err, "invalid partition key")
	}

	p := r.Properties
	*i = PublishedItem{
		Type:                  t,
		PublishedGuid:         r.RowKey,
		Name:                  p.String(PropertyName),
		Downloads:             p.Int64(PropertyDownloads),
		FavoriteCount:         p.Int64(PropertyFavoriteCount),
		CreatedDate:           p.Int64(PropertyCreatedDate),
		UpdatedDate:           p.Int64(PropertyUpdatedDate),
		OwnerID:               p.String(PropertyOwnerID),
		OwnerIdentityProvider: p.String(PropertyOwnerIdentityProvider),
		ItemLink:              p.String(PropertyItemLink),
		PreviewImage:          p.String(PropertyPreviewImage),
		Restricted:            p.Bool(PropertyRestricted),
		UserThemeID:           p.String(PropertyUserThemeID),
		Version:               r.Version,
	}

	// The layout is only meaningful for layout items; garbage is dropped rather than rendered.
	if layout := p.String(PropertyLayout); layout != "" && json.Valid([]byte(layout)) {
		i.Layout = json.RawMessage(layout)
	}

	return nil
}

// A PublishedItemSummary is returned once an item has been published.
type PublishedItemSummary struct {
	PublishedGuid    string   `json:"publishedGuid"`
	ItemName         string   `json:"itemName"`
	Type             ItemType `json:"type"`
	PublishedAt      int64    `json:"publishedAt"`
	ItemLink         string   `json:"itemLink"`
	PreviewImageLink string   `json:"previewImageLink"`
	IsNewPublication bool     `json:"isNewPublication"`
}
