package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// sessionRequired verifies the HS256 session bearer token issued by the auth
// front end. Verification is disabled when no secret is configured, which is
// the development-mode default.
func sessionRequired(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				return unauthorized()
			}

			parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !parsed.Valid {
				return unauthorized()
			}

			sub, err := parsed.Claims.GetSubject()
			if err != nil || sub == "" {
				return unauthorized()
			}

			c.Set("session_subject", sub)
			return next(c)
		}
	}
}

func unauthorized() error {
	return requestError{
		Status:  http.StatusUnauthorized,
		Message: "Unauthorized",
		Code:    "unauthorized",
	}
}
