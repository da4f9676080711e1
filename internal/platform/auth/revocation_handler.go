package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// defaultRevocationTTL bounds how long an entry without an explicit expiry is
// kept on the list.
const defaultRevocationTTL = time.Hour

type revokeRequest struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type revokeUserRequest struct {
	UserID string `json:"user_id"`
}

// RegisterRevocationRoutes mounts token revocation management under /auth.
// Admin only.
func RegisterRevocationRoutes(g *echo.Group, store *RevocationStore) {
	grp := g.Group("/auth", RequireRole("admin"))
	grp.POST("/revoke", revokeToken(store))
	grp.POST("/revoke-user", revokeUserTokens(store))
	grp.GET("/revocations", listRevocations(store))
}

func revokeToken(store *RevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokeRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.JTI == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "jti is required")
		}
		if req.ExpiresAt.IsZero() {
			req.ExpiresAt = time.Now().Add(defaultRevocationTTL)
		}
		store.Revoke(req.JTI, req.UserID, req.ExpiresAt)
		return c.NoContent(http.StatusNoContent)
	}
}

func revokeUserTokens(store *RevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokeUserRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.UserID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
		}
		n := store.RevokeUser(req.UserID)
		return c.JSON(http.StatusOK, map[string]int{"revoked_count": n})
	}
}

func listRevocations(store *RevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		entries := store.Entries()
		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(entries),
			"entries": entries,
		})
	}
}
