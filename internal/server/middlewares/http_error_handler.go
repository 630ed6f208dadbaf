package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pbitips/workload/internal/server/serializer"
	"github.com/pbitips/workload/internal/wlerror"
	"github.com/sirupsen/logrus"
)

// HTTPErrorHandler is a middleware that formats rendered errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if herr, ok := err.(*echo.HTTPError); ok {
		if herr.Code >= 500 {
			internal(err, c)
			return
		}

		logrus.WithError(herr.Internal).WithField("status", herr.Code).Debug("echo error")
		_ = c.JSON(herr.Code, serializer.Failure(fmt.Sprint(herr.Message)))
		return
	}

	if wlerr, ok := wlerror.From(err); ok {
		status := wlerror.StatusCode(wlerr)
		if status < 500 {
			_ = c.JSON(status, serializer.Failure(wlerr.Message))
			return
		}
	}

	internal(err, c)
}

func internal(err error, c echo.Context) {
	id := uuid.Must(uuid.NewV4()).String()
	logrus.WithError(err).WithFields(logrus.Fields{
		"error_id": id,
		"method":   c.Request().Method,
		"uri":      c.Request().RequestURI,
	}).Error("unexpected error")

	_ = c.JSON(http.StatusInternalServerError, serializer.Failure(fmt.Sprintf("Unexpected error (id: %s)", id)))
}
