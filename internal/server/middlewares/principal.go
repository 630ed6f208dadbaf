package middlewares

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pbitips/workload/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
)

const (
	// CurrentPrincipalContextKey is the key to retrieve the current_principal from echo.Context.
	CurrentPrincipalContextKey = "current_principal"

	// HeaderClientPrincipal carries the caller identity set by the hosting platform.
	HeaderClientPrincipal = "x-ms-client-principal"
	// HeaderClientPrincipalProxy carries the caller identity forwarded by a trusted proxy.
	HeaderClientPrincipalProxy = "x-ms-client-principal-proxy"
)

// LocalPrincipal is the caller used when authentication is bypassed.
var LocalPrincipal = model.Principal{
	IdentityProvider: "default-provider",
	UserID:           "default-user-id",
	UserDetails:      "default-user",
	UserRoles:        []string{model.RoleAdmin},
}

// Principal resolves the caller identity and stores it into echo.Context.
// Requests without a valid principal header are anonymous.
func Principal(bypassAuth bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if bypassAuth {
				c.Set(CurrentPrincipalContextKey, LocalPrincipal)
				return next(c)
			}

			var principal model.Principal
			for _, name := range []string{HeaderClientPrincipal, HeaderClientPrincipalProxy} {
				header := c.Request().Header.Get(name)
				if header == "" {
					continue
				}

				p, err := DecodePrincipal(header)
				if err != nil {
					logrus.WithError(err).WithField("header", name).Warn("ignoring invalid client principal")
					continue
				}
				principal = p
				break
			}

			c.Set(CurrentPrincipalContextKey, principal)
			return next(c)
		}
	}
}

// RequireAuthentication rejects anonymous callers.
func RequireAuthentication() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !CurrentPrincipal(c).IsAuthenticated() {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			return next(c)
		}
	}
}

// CurrentPrincipal returns the caller stored by the Principal middleware.
func CurrentPrincipal(c echo.Context) model.Principal {
	principal, _ := c.Get(CurrentPrincipalContextKey).(model.Principal)
	return principal
}

// DecodePrincipal decodes the base64 JSON principal header.
func DecodePrincipal(header string) (model.Principal, error) {
	var principal model.Principal

	header = strings.TrimSpace(header)
	payload, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		payload, err = base64.RawURLEncoding.DecodeString(header)
		if err != nil {
			return principal, errors.Wrap(err, "could not decode principal")
		}
	}

	v, err := fastjson.ParseBytes(payload)
	if err != nil {
		return principal, errors.Wrap(err, "could not parse principal")
	}

	principal.IdentityProvider = string(v.GetStringBytes("identityProvider"))
	principal.UserID = string(v.GetStringBytes("userId"))
	principal.UserDetails = string(v.GetStringBytes("userDetails"))
	for _, role := range v.GetArray("userRoles") {
		if r := string(role.GetStringBytes()); r != "" {
			principal.UserRoles = append(principal.UserRoles, r)
		}
	}

	if principal.UserID == "" {
		return model.Principal{}, errors.New("principal has no user id")
	}
	return principal, nil
}
