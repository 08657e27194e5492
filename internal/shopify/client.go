// Package shopify talks to a shop's OAuth and Admin endpoints on behalf of
// the install handshake.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/obot-platform/shopinstall/internal/logger"
)

const (
	authorizePath = "/admin/oauth/authorize"
	tokenPath     = "/admin/oauth/access_token"

	defaultShopSuffix = ".myshopify.com"
	defaultTimeout    = 10 * time.Second

	maxResponseBodyBytes = 1 << 20

	accessTokenHeader = "X-Shopify-Access-Token"
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	RedirectURL  string

	// APIVersion selects the Admin API version for the token check, e.g.
	// "2024-10". Empty uses the unversioned /admin/shop.json.
	APIVersion string

	// ShopSuffix is the domain suffix every shop must carry.
	ShopSuffix string

	// Timeout bounds each outbound call.
	Timeout time.Duration

	HTTPClient HTTPDoer

	// BaseURL maps a shop to the origin its endpoints live on. Defaults to
	// https://<shop>.
	BaseURL func(shop string) *url.URL

	Logger *logger.Logger
}

// Client performs the code exchange and token check against a shop.
type Client struct {
	cfg       Config
	http      HTTPDoer
	shopRegex *regexp.Regexp
	log       *logger.Logger
}

// TokenResponse is a successful access token response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope,omitempty"`

	// Raw is the response body exactly as the shop returned it.
	Raw json.RawMessage `json:"-"`
}

// New creates a Client, filling in defaults.
func New(cfg Config) *Client {
	if cfg.ShopSuffix == "" {
		cfg.ShopSuffix = defaultShopSuffix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BaseURL == nil {
		cfg.BaseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		cfg:       cfg,
		http:      httpClient,
		shopRegex: regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-]*` + regexp.QuoteMeta(cfg.ShopSuffix) + `$`),
		log:       log,
	}
}

func defaultBaseURL(shop string) *url.URL {
	return &url.URL{Scheme: "https", Host: shop}
}

// ValidShop reports whether shop is a well-formed shop domain.
func (c *Client) ValidShop(shop string) bool {
	return c.shopRegex.MatchString(shop)
}

func (c *Client) endpoint(shop, path string) string {
	u := *c.cfg.BaseURL(shop)
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String()
}

func (c *Client) oauthConfig(shop string) *oauth2.Config {
	cfg := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.endpoint(shop, authorizePath),
			TokenURL: c.endpoint(shop, tokenPath),
		},
	}
	// Shopify takes a comma separated scope list rather than the space
	// separated form oauth2 would produce.
	if len(c.cfg.Scopes) > 0 {
		cfg.Scopes = []string{strings.Join(c.cfg.Scopes, ",")}
	}
	return cfg
}

// AuthorizeURL returns the URL the merchant is redirected to in order to
// approve the install.
func (c *Client) AuthorizeURL(shop, state string) string {
	return c.oauthConfig(shop).AuthCodeURL(state, oauth2.SetAuthURLParam("shop", shop))
}

type exchangeRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
}

// Exchange trades an authorization code for a permanent access token. It
// makes exactly one request and never retries.
func (c *Client) Exchange(ctx context.Context, shop, code string) (*TokenResponse, error) {
	payload, err := json.Marshal(exchangeRequest{
		GrantType:    "authorization_code",
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Code:         code,
		RedirectURI:  c.cfg.RedirectURL,
	})
	if err != nil {
		return nil, &ExchangeError{Op: OpExchange, Message: "encode request", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(shop, tokenPath), bytes.NewReader(payload))
	if err != nil {
		return nil, &ExchangeError{Op: OpExchange, Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req, OpExchange, shop)
	if err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &ExchangeError{Op: OpExchange, StatusCode: status, Body: body, Message: "decode response", Cause: err}
	}
	if token.AccessToken == "" {
		return nil, &ExchangeError{Op: OpExchange, StatusCode: status, Body: body, Message: "response missing access token"}
	}
	token.Raw = json.RawMessage(body)

	return &token, nil
}

// VerifyToken makes one read-only Admin API call with accessToken to confirm
// it is usable. A failure does not invalidate the token.
func (c *Client) VerifyToken(ctx context.Context, shop, accessToken string) error {
	path := "/admin/shop.json"
	if c.cfg.APIVersion != "" {
		path = "/admin/api/" + c.cfg.APIVersion + "/shop.json"
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(shop, path), nil)
	if err != nil {
		return &ExchangeError{Op: OpVerify, Message: "build request", Cause: err}
	}
	req.Header.Set(accessTokenHeader, accessToken)
	req.Header.Set("Accept", "application/json")

	_, _, err = c.do(req, OpVerify, shop)
	return err
}

// do sends req and returns the status and body of a 2xx response. Anything
// else becomes an *ExchangeError carrying whatever the shop returned.
func (c *Client) do(req *http.Request, op, shop string) (int, []byte, error) {
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		err = &ExchangeError{Op: op, Message: "request failed", Cause: err}
		c.log.LogUpstream(op, shop, 0, time.Since(start), err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes+1))
	if err != nil {
		err = &ExchangeError{Op: op, StatusCode: resp.StatusCode, Message: "read response", Cause: err}
		c.log.LogUpstream(op, shop, resp.StatusCode, time.Since(start), err)
		return 0, nil, err
	}
	if len(body) > maxResponseBodyBytes {
		err = &ExchangeError{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("response exceeds %d bytes", maxResponseBodyBytes)}
		c.log.LogUpstream(op, shop, resp.StatusCode, time.Since(start), err)
		return 0, nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = &ExchangeError{Op: op, StatusCode: resp.StatusCode, Body: body, Message: http.StatusText(resp.StatusCode)}
		c.log.LogUpstream(op, shop, resp.StatusCode, time.Since(start), err)
		return 0, nil, err
	}

	c.log.LogUpstream(op, shop, resp.StatusCode, time.Since(start), nil)
	return resp.StatusCode, body, nil
}
