package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// Login exchanges credentials for a bearer token using the OAuth2 password
// grant against /auth/token.
func (c *Client) Login(ctx context.Context, email, password string) (*Token, error) {
	var out *Token
	err := c.instrument(ctx, "login", func(ctx context.Context) error {
		conf := &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  c.baseURL + "/auth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

		tok, err := conf.PasswordCredentialsToken(ctx, email, password)
		if err != nil {
			return loginError(err)
		}
		out = &Token{AccessToken: tok.AccessToken, TokenType: tok.TokenType}
		return nil
	})
	return out, err
}

func loginError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return parseError(re.Response.StatusCode, re.Body, "Login failed")
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return transportError(err)
	}
	return &Error{Kind: KindDomain, Message: "Login failed", Err: err}
}

// Register creates an account. The result may carry a token or ask for
// email verification first.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	var out RegisterResult
	err = c.doJSON(ctx, request{
		op:       "register",
		method:   http.MethodPost,
		path:     "/auth/register",
		body:     body,
		ctype:    contentTypeJSON,
		fallback: "Registration failed",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail confirms an account with the token from the verification
// email and returns the server's confirmation message.
func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.doJSON(ctx, request{
		op:       "verify_email",
		method:   http.MethodGet,
		path:     "/auth/verify-email",
		query:    url.Values{"token": {token}},
		fallback: "Verification failed. The link may be invalid or expired",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Message == "" {
		out.Message = "Email verified successfully!"
	}
	return out.Message, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var out Profile
	err := c.doJSON(ctx, request{
		op:       "get_profile",
		method:   http.MethodGet,
		path:     "/auth/me",
		auth:     true,
		fallback: "Failed to fetch profile",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile saves the editable profile fields and returns the profile
// as stored by the server.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	body, err := jsonBody(update)
	if err != nil {
		return nil, err
	}
	var out Profile
	err = c.doJSON(ctx, request{
		op:       "update_profile",
		method:   http.MethodPatch,
		path:     "/auth/me",
		body:     body,
		ctype:    contentTypeJSON,
		auth:     true,
		fallback: "Failed to update profile",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health queries the API root and returns its status document.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	err := c.instrument(ctx, "health", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Origin()+"/", nil)
		if err != nil {
			return err
		}
		req.Header.Set(headerUserAgent, userAgent)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return transportError(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return parseError(resp.StatusCode, nil, "Health check failed")
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return &Error{Kind: KindDomain, Message: "Health check failed: unexpected response", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
