package service

import (
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/wlerror"
)

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return wlerror.Validation("name is required")
	}
	if !utf8.ValidString(name) {
		return wlerror.Validation("name must be valid UTF-8")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return wlerror.Validation("name must be at most %d characters", MaxNameLength)
	}
	return nil
}

func validatePreviewImage(link string) error {
	if link == "" {
		return nil
	}

	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return wlerror.Validation("previewImage must be an absolute http(s) URL")
	}
	return nil
}

func validateUserThemeID(id string) error {
	if id == "" {
		return nil
	}
	if _, err := uuid.FromString(id); err != nil {
		return wlerror.Validation("userThemeId must be a UUID")
	}
	return nil
}

// validateLayout checks the type-specific payload: layouts carry a JSON geometry, other types don't.
func validateLayout(t model.ItemType, layout json.RawMessage) error {
	present := len(layout) > 0 && string(layout) != "null"

	switch {
	case t == model.ItemTypeLayout && !present:
		return wlerror.Validation("layout is required for layout items")
	case t != model.ItemTypeLayout && present:
		return wlerror.Validation("layout is only accepted for layout items")
	case present && !json.Valid(layout):
		return wlerror.Validation("layout must be valid JSON")
	}
	return nil
}
