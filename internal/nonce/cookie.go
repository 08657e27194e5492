package nonce

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie the cookie-backed store uses.
const CookieName = "shopinstall_oauth_state"

// ErrNoHTTPContext is returned by CookieStore when the request context was
// not prepared with WithHTTP.
var ErrNoHTTPContext = errors.New("nonce: cookie store used without an http context")

type httpCarrier struct {
	w http.ResponseWriter
	r *http.Request
}

type httpCarrierKey struct{}

// WithHTTP attaches the response writer and request to ctx so CookieStore
// can read and write its cookie. Other stores ignore it.
func WithHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context {
	return context.WithValue(ctx, httpCarrierKey{}, &httpCarrier{w: w, r: r})
}

func carrierFrom(ctx context.Context) (*httpCarrier, bool) {
	c, ok := ctx.Value(httpCarrierKey{}).(*httpCarrier)
	return c, ok && c != nil
}

// CookieStore keeps the state token in a cookie on the merchant's browser.
//
// This is weaker than the server-side stores: the cookie is cleared on
// redemption, but a captured cookie can be replayed until it expires because
// nothing on the server remembers it was used.
type CookieStore struct {
	ttl    time.Duration
	secure bool
}

// NewCookieStore creates a CookieStore whose cookie lives for ttl.
func NewCookieStore(ttl time.Duration, secure bool) *CookieStore {
	return &CookieStore{ttl: ttl, secure: secure}
}

// Create implements Store.
func (c *CookieStore) Create(ctx context.Context, shop string) (string, error) {
	carrier, ok := carrierFrom(ctx)
	if !ok {
		return "", ErrNoHTTPContext
	}
	token, err := Generate()
	if err != nil {
		return "", err
	}
	http.SetCookie(carrier.w, &http.Cookie{
		Name:     CookieName,
		Value:    shop + "|" + token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.ttl.Seconds()),
	})
	return token, nil
}

// RedeemOnce implements Store. The cookie is bound to the shop it was issued
// for; a cookie for another shop counts as absent.
func (c *CookieStore) RedeemOnce(ctx context.Context, shop string) (string, error) {
	carrier, ok := carrierFrom(ctx)
	if !ok {
		return "", ErrNoHTTPContext
	}
	cookie, err := carrier.r.Cookie(CookieName)
	if err != nil {
		return "", ErrNotFound
	}

	// Clear the cookie
	http.SetCookie(carrier.w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		MaxAge:   -1,
	})

	cookieShop, token, found := strings.Cut(cookie.Value, "|")
	if !found || cookieShop != shop || token == "" {
		return "", ErrNotFound
	}
	return token, nil
}
