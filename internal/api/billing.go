package api

import (
	"context"
	"net/http"
)

// Checkout starts a subscription checkout for priceID and returns the URL
// the user must open to pay.
func (c *Client) Checkout(ctx context.Context, priceID string) (string, error) {
	body, err := jsonBody(map[string]string{"priceId": priceID})
	if err != nil {
		return "", err
	}
	var out struct {
		CheckoutURL string `json:"checkout_url"`
	}
	err = c.doJSON(ctx, request{
		op:       "checkout",
		method:   http.MethodPost,
		path:     "/subscription/checkout",
		body:     body,
		ctype:    contentTypeJSON,
		auth:     true,
		fallback: "Failed to start checkout",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.CheckoutURL == "" {
		return "", &Error{StatusCode: http.StatusOK, Kind: KindDomain, Message: "Failed to start checkout: no checkout URL returned"}
	}
	return out.CheckoutURL, nil
}

// BillingPortal returns the URL of the customer billing portal.
func (c *Client) BillingPortal(ctx context.Context) (string, error) {
	var out struct {
		PortalURL string `json:"portal_url"`
	}
	err := c.doJSON(ctx, request{
		op:       "billing_portal",
		method:   http.MethodPost,
		path:     "/subscription/portal",
		auth:     true,
		fallback: "Failed to open billing portal",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.PortalURL == "" {
		return "", &Error{StatusCode: http.StatusOK, Kind: KindDomain, Message: "Failed to open billing portal: no portal URL returned"}
	}
	return out.PortalURL, nil
}
