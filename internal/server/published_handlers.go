package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/server/serializer"
	"github.com/pbitips/workload/internal/service"
	"github.com/pbitips/workload/internal/wlerror"
)

// HeaderContinuationToken carries the continuation token of paged listings.
const HeaderContinuationToken = "x-continuation-token"

// published contains all published item handlers.
type published struct {
	catalog *service.Catalog
}

///// List
////
//

// List returns a page of the public catalog.
func (h *published) List(c echo.Context) error {
	filter, err := listFilter(c)
	if err != nil {
		return err
	}

	params := service.NewListParams()
	params.Filter = filter
	params.SortBy = service.SortBy(c.QueryParam("sortBy"))
	params.SortOrder = service.SortOrder(c.QueryParam("sortOrder"))

	if raw := c.QueryParam("pageSize"); raw != "" {
		params.PageSize, err = strconv.Atoi(raw)
		if err != nil {
			return wlerror.Validation("invalid pageSize %q", raw)
		}
	}

	params.ContinuationToken = c.Request().Header.Get(HeaderContinuationToken)
	if params.ContinuationToken == "" {
		params.ContinuationToken = c.QueryParam("continuationToken")
	}

	page, err := h.catalog.ListPage(c.Request().Context(), currentPrincipal(c), params)
	if err != nil {
		return err
	}

	if page.ContinuationToken != "" {
		c.Response().Header().Set(HeaderContinuationToken, page.ContinuationToken)
	}
	return c.JSON(http.StatusOK, serializer.Success(page))
}

// ListAll returns the whole catalog, admins only.
func (h *published) ListAll(c echo.Context) error {
	filter, err := listFilter(c)
	if err != nil {
		return err
	}

	items, err := h.catalog.ListAll(c.Request().Context(), currentPrincipal(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, serializer.Success(items))
}

///// Show
////
//

// Show returns a published item, restricted or not.
func (h *published) Show(c echo.Context) error {
	t, err := itemType(c)
	if err != nil {
		return err
	}

	item, err := h.catalog.Get(c.Request().Context(), t, c.Param("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, serializer.Success(item))
}

///// Mutations
////
//

// Publish stores a new item owned by the caller.
func (h *published) Publish(c echo.Context) error {
	var params service.PublishParams
	if err := c.Bind(&params); err != nil {
		return err
	}

	summary, err := h.catalog.Publish(c.Request().Context(), currentPrincipal(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, serializer.Success(summary))
}

// Update edits the name, the preview or the restriction of an item.
func (h *published) Update(c echo.Context) error {
	t, err := itemType(c)
	if err != nil {
		return err
	}

	var params service.UpdateParams
	if err = c.Bind(&params); err != nil {
		return err
	}

	item, err := h.catalog.Update(c.Request().Context(), currentPrincipal(c), t, c.Param("itemId"), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, serializer.Success(item))
}

// Delete removes an item owned by the caller, or any item for admins.
func (h *published) Delete(c echo.Context) error {
	t, err := itemType(c)
	if err != nil {
		return err
	}

	if err = h.catalog.Delete(c.Request().Context(), currentPrincipal(c), t, c.Param("itemId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, serializer.Success(nil))
}

// Download counts a download of the item.
func (h *published) Download(c echo.Context) error {
	t, err := itemType(c)
	if err != nil {
		return err
	}

	item, err := h.catalog.RecordDownload(c.Request().Context(), t, c.Param("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, serializer.Success(item))
}

// Favorite counts a favorite of the item.
func (h *published) Favorite(c echo.Context) error {
	t, err := itemType(c)
	if err != nil {
		return err
	}

	item, err := h.catalog.RecordFavorite(c.Request().Context(), t, c.Param("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, serializer.Success(item))
}

//
// Params
//

func itemType(c echo.Context) (model.ItemType, error) {
	t, err := model.ParseItemType(c.Param("itemType"))
	if err != nil {
		return "", wlerror.Validation("invalid item type %q", c.Param("itemType"))
	}
	return t, nil
}

// listFilter reads the itemType, search and includeRestricted query parameters.
// itemType can be repeated or comma separated.
func listFilter(c echo.Context) (service.ListFilter, error) {
	var filter service.ListFilter

	for _, values := range c.QueryParams()["itemType"] {
		for _, value := range strings.Split(values, ",") {
			if strings.TrimSpace(value) == "" {
				continue
			}

			t, err := model.ParseItemType(value)
			if err != nil {
				return filter, wlerror.Validation("invalid item type %q", value)
			}
			filter.ItemTypes = append(filter.ItemTypes, t)
		}
	}

	filter.Search = c.QueryParam("search")

	if raw := c.QueryParam("includeRestricted"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, wlerror.Validation("invalid includeRestricted %q", raw)
		}
		filter.IncludeRestricted = include
	}

	return filter, nil
}
