package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/appleboy/gofight/v2"
	"github.com/labstack/echo/v4"
	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/server"
	"github.com/pbitips/workload/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPublishedList(t *testing.T) {
	engine, db, cleanup := setup(t)
	defer cleanup()

	createItem(t, db, &model.PublishedItem{Type: model.ItemTypeLayout, PublishedGuid: "c", Name: "Grid", Downloads: 5, CreatedDate: 1})
	createItem(t, db, &model.PublishedItem{Type: model.ItemTypeLayout, PublishedGuid: "a", Name: "Columns", Downloads: 10, CreatedDate: 2})
	createItem(t, db, &model.PublishedItem{Type: model.ItemTypeLayout, PublishedGuid: "b", Name: "Rows", Downloads: 5, CreatedDate: 3})
	createItem(t, db, &model.PublishedItem{Type: model.ItemTypeTheme, PublishedGuid: "d", Name: "Ocean", CreatedDate: 4})

	var token string
	gofight.New().GET("/published?itemType=layout&sortBy=downloads&sortOrder=DESC&pageSize=2").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var page service.Page
		e := decode(t, r.Body.Bytes(), &page)
		assert.True(t, e.Success)
		assert.Equal(t, 2, page.PageSize)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "a", page.Items[0].PublishedGuid)
		assert.Equal(t, "b", page.Items[1].PublishedGuid)
		assert.NotEmpty(t, page.ContinuationToken)
		assert.Equal(t, page.ContinuationToken, r.HeaderMap.Get(server.HeaderContinuationToken))

		token = page.ContinuationToken
	})

	// The token is accepted from the header.
	gofight.New().GET("/published?itemType=layout&sortBy=downloads&sortOrder=desc&pageSize=2").
		SetHeader(gofight.H{server.HeaderContinuationToken: token}).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)

			var page service.Page
			decode(t, r.Body.Bytes(), &page)
			require.Len(t, page.Items, 1)
			assert.Equal(t, "c", page.Items[0].PublishedGuid)
			assert.Empty(t, page.ContinuationToken)
			assert.Empty(t, r.HeaderMap.Get(server.HeaderContinuationToken))
		})

	// And from the query.
	gofight.New().GET("/published?itemType=layout&sortBy=downloads&pageSize=2&continuationToken="+token).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var page service.Page
		decode(t, r.Body.Bytes(), &page)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "c", page.Items[0].PublishedGuid)
	})

	// Defaults: createdDate desc, 20 items.
	gofight.New().GET("/published").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var page service.Page
		decode(t, r.Body.Bytes(), &page)
		assert.Equal(t, service.DefaultPageSize, page.PageSize)
		require.Len(t, page.Items, 4)
		assert.Equal(t, "d", page.Items[0].PublishedGuid)
		assert.Equal(t, "c", page.Items[3].PublishedGuid)
	})

	gofight.New().GET("/published?pageSize=0").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var page service.Page
		decode(t, r.Body.Bytes(), &page)
		assert.Equal(t, 1, page.PageSize)
		assert.Len(t, page.Items, 1)
	})
}

func TestRequestPublishedListValidation(t *testing.T) {
	engine, _, cleanup := setup(t)
	defer cleanup()

	for _, uri := range []string{
		"/published?sortBy=popularity",
		"/published?sortOrder=up",
		"/published?itemType=report",
		"/published?pageSize=ten",
		"/published?includeRestricted=maybe",
		"/published?continuationToken=garbage",
	} {
		gofight.New().GET(uri).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusBadRequest, r.Code, uri)

			e := decode(t, r.Body.Bytes(), nil)
			assert.False(t, e.Success, uri)
			assert.NotEmpty(t, e.ErrorMessage, uri)
		})
	}
}

func TestRequestPublishedListAll(t *testing.T) {
	engine, db, cleanup := setup(t)
	defer cleanup()

	createItem(t, db, &model.PublishedItem{Type: model.ItemTypeTheme, CreatedDate: 1})
	createItem(t, db, &model.PublishedItem{Type: model.ItemTypeProject, CreatedDate: 2, Restricted: true})

	gofight.New().GET("/admin/published").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})

	gofight.New().GET("/admin/published").SetHeader(principalHeader("u1", model.RoleContributor)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusForbidden, r.Code)
	})

	gofight.New().GET("/admin/published?includeRestricted=true").SetHeader(principalHeader("u1", model.RoleAdmin)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var items []*model.PublishedItem
		decode(t, r.Body.Bytes(), &items)
		assert.Len(t, items, 2)
	})

	gofight.New().GET("/admin/published").SetHeader(principalHeader("u1", model.RoleAdmin)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var items []*model.PublishedItem
		decode(t, r.Body.Bytes(), &items)
		assert.Len(t, items, 1)
	})
}

func TestRequestPublishLifecycle(t *testing.T) {
	engine, _, cleanup := setup(t)
	defer cleanup()

	gofight.New().POST("/published").SetJSON(gofight.D{"type": "theme", "name": "Ocean"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"success":false,"resultObject":null,"errorMessage":"Authentication required"}`, r.Body.String())
	})

	gofight.New().POST("/published").SetHeader(principalHeader("u1", model.RoleContributor)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})

	var summary model.PublishedItemSummary
	gofight.New().POST("/published").
		SetHeader(principalHeader("u1", model.RoleContributor)).
		SetJSON(gofight.D{"type": "theme", "name": "Ocean", "previewImage": "https://cdn.contoso.com/ocean.png"}).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusCreated, r.Code)

			e := decode(t, r.Body.Bytes(), &summary)
			assert.True(t, e.Success)
			assert.Equal(t, "Ocean", summary.ItemName)
			assert.Equal(t, model.ItemTypeTheme, summary.Type)
			assert.True(t, summary.IsNewPublication)
			assert.Equal(t, service.DefaultItemLink(summary.PublishedGuid), summary.ItemLink)
		})

	uri := "/published/theme/" + summary.PublishedGuid

	gofight.New().GET(uri).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var item model.PublishedItem
		decode(t, r.Body.Bytes(), &item)
		assert.Equal(t, "Ocean", item.Name)
		assert.Equal(t, "u1", item.OwnerID)
		assert.Equal(t, "https://cdn.contoso.com/ocean.png", item.PreviewImage)
	})

	gofight.New().PATCH(uri).
		SetHeader(principalHeader("u1", model.RoleContributor)).
		SetJSON(gofight.D{"name": "Deep Ocean"}).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)

			var item model.PublishedItem
			decode(t, r.Body.Bytes(), &item)
			assert.Equal(t, "Deep Ocean", item.Name)
		})

	gofight.New().POST(uri+"/download").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var item model.PublishedItem
		decode(t, r.Body.Bytes(), &item)
		assert.EqualValues(t, 1, item.Downloads)
	})

	gofight.New().POST(uri+"/favorite").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})

	gofight.New().POST(uri+"/favorite").SetHeader(principalHeader("u2", model.RoleUser)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var item model.PublishedItem
		decode(t, r.Body.Bytes(), &item)
		assert.EqualValues(t, 1, item.FavoriteCount)
	})

	gofight.New().DELETE(uri).SetHeader(principalHeader("u2", model.RoleUser)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusForbidden, r.Code)

		e := decode(t, r.Body.Bytes(), nil)
		assert.False(t, e.Success)
	})

	gofight.New().DELETE(uri).SetHeader(principalHeader("u1", model.RoleUser)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"success":true,"resultObject":null}`, r.Body.String())
	})

	gofight.New().GET(uri).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})

	gofight.New().DELETE(uri).SetHeader(principalHeader("u1", model.RoleUser)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})
}

func TestRequestPublishValidation(t *testing.T) {
	engine, _, cleanup := setup(t)
	defer cleanup()

	header := principalHeader("u1", model.RoleUser)

	gofight.New().POST("/published").SetHeader(header).SetJSON(gofight.D{"type": "theme", "name": "Ocean"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusForbidden, r.Code)
	})

	gofight.New().POST("/published").SetHeader(header).SetJSON(gofight.D{"type": "layout", "name": "Grid"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"success":false,"resultObject":null,"errorMessage":"layout is required for layout items"}`, r.Body.String())
	})

	gofight.New().POST("/published").SetHeader(header).SetJSON(gofight.D{"type": "layout", "name": "Grid", "layout": gofight.D{"columns": 2}}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)
	})

	gofight.New().GET("/published/report/42").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})
}

func TestRequestBypassAuth(t *testing.T) {
	engine, db, cleanup := setupWithIOC(t, func(ioc *server.IOC) {
		ioc.BypassAuth = true
	})
	defer cleanup()

	createItem(t, db, &model.PublishedItem{Type: model.ItemTypeTheme, PublishedGuid: "a", OwnerID: "someone"})

	gofight.New().DELETE("/published/theme/a").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})

	_, err := db.Get(context.Background(), table, "theme", "a")
	assert.True(t, db.IsNotFound(err))
}

func TestListFilter(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/published?itemType=Theme,layout&itemType=scrims&search=Ocean&includeRestricted=true", nil)
	filter, err := server.ListFilter(e.NewContext(req, httptest.NewRecorder()))
	require.NoError(t, err)
	assert.Equal(t, []model.ItemType{model.ItemTypeTheme, model.ItemTypeLayout, model.ItemTypeScrims}, filter.ItemTypes)
	assert.Equal(t, "Ocean", filter.Search)
	assert.True(t, filter.IncludeRestricted)

	req = httptest.NewRequest(http.MethodGet, "/published", nil)
	filter, err = server.ListFilter(e.NewContext(req, httptest.NewRecorder()))
	require.NoError(t, err)
	assert.Empty(t, filter.ItemTypes)
	assert.False(t, filter.IncludeRestricted)
}
