// auth.go implements federated login: the OIDC redirect flow that ends with a
// first-party JWT, plus the /auth/me identity endpoint.
package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openboard/openboard/internal/audit"
	"github.com/openboard/openboard/internal/auth"
	"github.com/openboard/openboard/internal/auth/oidc"
	"github.com/openboard/openboard/internal/config"
	"github.com/openboard/openboard/internal/db/models"
	"github.com/openboard/openboard/internal/db/repositories"
)

// stateTTL bounds how long an OIDC login attempt may take before the state
// parameter expires.
const stateTTL = 5 * time.Minute

// AuthHandlers handles the login flow endpoints.
type AuthHandlers struct {
	cfg      *config.Config
	users    *repositories.UserRepository
	provider *oidc.OIDCProvider
	trail    *audit.Trail

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAuthHandlers wires the login endpoints. The OIDC provider is only
// initialized when federated login is enabled in config; without it the
// login routes answer with an explanatory error.
func NewAuthHandlers(cfg *config.Config, users *repositories.UserRepository, trail *audit.Trail) (*AuthHandlers, error) {
	h := &AuthHandlers{
		cfg:    cfg,
		users:  users,
		trail:  trail,
		states: make(map[string]time.Time),
	}

	if cfg.Auth.OIDC.Enabled {
		provider, err := oidc.NewOIDCProvider(&cfg.Auth.OIDC)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
		h.provider = provider
	}

	return h, nil
}

// LoginHandler starts the OIDC authorization flow.
// GET /v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.provider == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Federated login is not configured",
			})
			return
		}

		state, err := generateState()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate state",
			})
			return
		}

		h.mu.Lock()
		h.states[state] = time.Now()
		// Expired states pile up when users abandon the flow; prune on the
		// way in rather than running a janitor goroutine.
		for s, created := range h.states {
			if time.Since(created) > stateTTL {
				delete(h.states, s)
			}
		}
		h.mu.Unlock()

		c.Redirect(http.StatusFound, h.provider.GetAuthURL(state))
	}
}

// CallbackHandler finishes the OIDC flow: verifies the ID token, provisions
// the user row, and hands the browser a first-party JWT.
// GET /v1/auth/callback?code=...&state=...
func (h *AuthHandlers) CallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		frontendBase := h.cfg.Server.GetPublicURL()

		callbackError := func(errCode, description string) {
			target := fmt.Sprintf(
				"%s/auth/callback?error=%s&error_description=%s",
				frontendBase,
				url.QueryEscape(errCode),
				url.QueryEscape(description),
			)
			c.Redirect(http.StatusFound, target)
		}

		if h.provider == nil {
			callbackError("provider_not_configured", "Federated login is not configured.")
			return
		}

		state := c.Query("state")
		h.mu.Lock()
		created, ok := h.states[state]
		delete(h.states, state)
		h.mu.Unlock()
		if !ok {
			callbackError("invalid_state", "Invalid state parameter. Please try logging in again.")
			return
		}
		if time.Since(created) > stateTTL {
			callbackError("state_expired", "Login session expired. Please try logging in again.")
			return
		}

		ctx := c.Request.Context()

		token, err := h.provider.ExchangeCode(ctx, c.Query("code"))
		if err != nil {
			callbackError("token_exchange_failed", "Failed to exchange authorization code for token.")
			return
		}

		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok {
			callbackError("no_id_token", "The identity provider did not return an ID token.")
			return
		}

		idToken, err := h.provider.VerifyIDToken(ctx, rawIDToken)
		if err != nil {
			callbackError("id_token_invalid", "The ID token could not be verified.")
			return
		}

		sub, email, name, err := h.provider.ExtractUserInfo(idToken)
		if err != nil {
			callbackError("user_info_failed", "Failed to extract user information from the ID token.")
			return
		}

		user := &models.User{
			ID:    sub,
			Email: email,
			Name:  name,
		}
		if err := h.users.Upsert(ctx, user); err != nil {
			slog.Error("failed to provision user on login", "error", err, "sub", sub)
			callbackError("provisioning_failed", "Failed to provision the user account.")
			return
		}

		// With an admin claim configured, the identity provider owns the
		// admin flag and every login resynchronizes it.
		if claim := h.cfg.Auth.OIDC.AdminClaimName; claim != "" {
			isAdmin := h.provider.ExtractAdminClaim(idToken, claim)
			if err := h.users.SetAdmin(ctx, user.ID, isAdmin); err != nil {
				slog.Error("failed to sync admin flag", "error", err, "sub", sub)
			} else {
				user.IsAdmin = isAdmin
			}
		}

		jwt, err := auth.GenerateJWT(user.ID, user.Email, h.cfg.Auth.JWT.TokenTTL)
		if err != nil {
			slog.Error("failed to issue token", "error", err)
			callbackError("token_issue_failed", "Failed to issue a session token.")
			return
		}

		h.trail.Record(ctx, &audit.Entry{
			Action:    "auth.login",
			UserID:    user.ID,
			IPAddress: c.ClientIP(),
			Detail:    map[string]any{"admin": user.IsAdmin},
		})

		c.Redirect(http.StatusFound, fmt.Sprintf(
			"%s/auth/callback?token=%s", frontendBase, url.QueryEscape(jwt),
		))
	}
}

// MeHandler returns the authenticated caller's account. Registered behind
// the required-auth middleware, which stores the loaded user on the context.
// GET /v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := c.Get("user")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
