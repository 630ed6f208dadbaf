package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pbitips/workload/internal/database"
	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/server/middlewares"
	"github.com/pbitips/workload/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// An IOC is an Iversion Of Control pattern used to init the server package.
type IOC struct {
	Version  string
	Database database.Client
	// PublishedTable is the table holding the published items.
	PublishedTable string
	// BypassAuth treats every caller as a local admin.
	BypassAuth bool
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl IOC) *echo.Echo {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middlewares.NewMetrics(registry)

	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch, http.MethodDelete},
		ExposeHeaders: []string{HeaderContinuationToken},
	}))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Use(metrics.Middleware())
	engine.Use(middlewares.Principal(ctrl.BypassAuth))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	////////////
	// Router //
	////////////

	router := engine.Group("")
	authenticated := middlewares.RequireAuthentication()

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})
	router.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	//
	// published item handlers
	//
	published := &published{
		catalog: service.NewCatalog(ctrl.Database, ctrl.PublishedTable),
	}
	router.GET("/published", published.List)
	router.GET("/published/:itemType/:itemId", published.Show)
	router.POST("/published/:itemType/:itemId/download", published.Download)
	router.GET("/admin/published", published.ListAll, authenticated)
	router.POST("/published", published.Publish, authenticated)
	router.PATCH("/published/:itemType/:itemId", published.Update, authenticated)
	router.DELETE("/published/:itemType/:itemId", published.Delete, authenticated)
	router.POST("/published/:itemType/:itemId/favorite", published.Favorite, authenticated)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}

func currentPrincipal(c echo.Context) model.Principal {
	return middlewares.CurrentPrincipal(c)
}
