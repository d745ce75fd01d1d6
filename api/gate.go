package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SecretGate guards the dashboard routes behind a secret path segment.
// There is no real authentication: knowing the path is the credential.
// Mismatches return 404 rather than 401 so probing reveals nothing about
// which segment is the live one.
func SecretGate(secret string) echo.MiddlewareFunc {
	want := sha256.Sum256([]byte(secret))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := sha256.Sum256([]byte(c.Param("secret")))
			// Hashing first keeps the comparison constant-time regardless
			// of attempt length.
			if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
				return echo.NewHTTPError(http.StatusNotFound)
			}
			return next(c)
		}
	}
}
