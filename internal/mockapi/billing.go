package mockapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleCheckout(c echo.Context) error {
	var req struct {
		PriceID string `json:"priceId"`
	}
	if err := c.Bind(&req); err != nil || !strings.HasPrefix(req.PriceID, "price_") {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid price ID")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"checkout_url": "https://checkout.stripe.test/c/pay/" + url.PathEscape(req.PriceID),
	})
}

func (s *Server) handlePortal(c echo.Context) error {
	s.mu.Lock()
	tier := currentUser(c).PlanTier
	s.mu.Unlock()
	if tier == "free" {
		return echo.NewHTTPError(http.StatusBadRequest, "No active subscription found")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"portal_url": "https://billing.stripe.test/p/session",
	})
}

// SetPlan changes a user's plan tier, e.g. to "pro" so the billing portal
// becomes available.
func (s *Server) SetPlan(email, tier string, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.users[strings.ToLower(email)]; u != nil {
		u.PlanTier = tier
		u.Limit = limit
	}
}
