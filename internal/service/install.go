// Package service implements the app install handshake.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/obot-platform/shopinstall/internal/logger"
	"github.com/obot-platform/shopinstall/internal/metrics"
	"github.com/obot-platform/shopinstall/internal/nonce"
	"github.com/obot-platform/shopinstall/internal/shopify"
	"github.com/obot-platform/shopinstall/internal/signature"
)

// Shopify is the part of the shop client the handshake uses.
type Shopify interface {
	ValidShop(shop string) bool
	AuthorizeURL(shop, state string) string
	Exchange(ctx context.Context, shop, code string) (*shopify.TokenResponse, error)
	VerifyToken(ctx context.Context, shop, accessToken string) error
}

// InstallOptions configures an InstallService.
type InstallOptions struct {
	// APISecret is the shared secret used to check callback signatures.
	APISecret string

	// SanityCheck makes the callback confirm the new token with one
	// read-only Admin API call before answering.
	SanityCheck bool
}

// InstallService sequences the install handshake.
type InstallService struct {
	states  nonce.Store
	shopify Shopify
	opts    InstallOptions
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewInstallService creates an InstallService. metrics may be nil.
func NewInstallService(states nonce.Store, client Shopify, opts InstallOptions, m *metrics.Metrics, log *logger.Logger) *InstallService {
	if log == nil {
		log = logger.NewNop()
	}
	return &InstallService{
		states:  states,
		shopify: client,
		opts:    opts,
		metrics: m,
		log:     log,
	}
}

// Initiate starts a handshake for shop and returns the URL to redirect the
// merchant to. The shop is checked before the hmac parameter, and nothing is
// written to the state store unless both pass.
func (s *InstallService) Initiate(ctx context.Context, shop string, hasHMAC bool) (redirectURL string, err error) {
	defer func() { s.metrics.ObserveInitiate(Outcome(err)) }()

	if !s.shopify.ValidShop(shop) {
		return "", ErrInvalidTenant
	}
	if !hasHMAC {
		return "", ErrMissingSignatureParameter
	}

	state, err := s.states.Create(ctx, shop)
	if err != nil {
		s.log.Error("failed to create state", "shop", shop, "error", err)
		return "", &StoreError{Op: "create", Err: err}
	}

	s.log.Info("install initiated", "shop", shop)
	return s.shopify.AuthorizeURL(shop, state), nil
}

// Callback completes a handshake from the query Shopify redirected back
// with. On success it returns the raw access token response body.
//
// The steps run strictly in order and the first failure ends the request:
// required parameters, state redemption, signature, code exchange, then the
// optional token check. The state is consumed even when a later step fails.
func (s *InstallService) Callback(ctx context.Context, query url.Values) (body []byte, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveCallback(Outcome(err), time.Since(start)) }()

	shop := query.Get("shop")
	hmacParam := query.Get(signature.FieldHMAC)
	code := query.Get("code")
	state := query.Get("state")

	if !s.shopify.ValidShop(shop) || hmacParam == "" || code == "" || state == "" {
		return nil, ErrMissingParameters
	}

	log := s.log.With("shop", shop, "handshake_id", uuid.NewString())

	stored, err := s.states.RedeemOnce(ctx, shop)
	if err != nil {
		if errors.Is(err, nonce.ErrNotFound) {
			log.Warn("no pending state for callback")
			return nil, ErrOriginUnverifiable
		}
		log.Error("failed to redeem state", "error", err)
		return nil, &StoreError{Op: "redeem", Err: err}
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(state)) != 1 {
		log.Warn("callback state mismatch")
		return nil, ErrOriginUnverifiable
	}

	if !signature.VerifyQuery(s.opts.APISecret, query) {
		log.Warn("callback signature mismatch")
		return nil, ErrSignatureInvalid
	}

	// The code is single use: once it is sent, finish the install even if
	// the merchant's browser goes away.
	ctx = context.WithoutCancel(ctx)

	token, err := s.shopify.Exchange(ctx, shop, code)
	if err != nil {
		log.Error("code exchange failed", "error", err)
		return nil, &UpstreamError{Err: err}
	}

	if s.opts.SanityCheck {
		if err := s.shopify.VerifyToken(ctx, shop, token.AccessToken); err != nil {
			log.Error("token check failed", "error", err)
			return nil, &UpstreamError{Err: err}
		}
	}

	log.Info("install completed", "scope", token.Scope)
	return token.Raw, nil
}
