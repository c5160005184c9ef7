package api

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/gorilla/mux"

	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/httputil"
	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/reset"
	"github.com/mindrush/portal/pkg/session"
	"github.com/mindrush/portal/pkg/users"
)

// loginPagePath is where unauthenticated browsers land; it doubles as the
// dev-login entry point when the identity provider is unavailable.
const loginPagePath = "/login"

// OIDCFlow is the slice of the OIDC manager the handlers need. nil means
// OIDC is unconfigured and only the dev path is live.
type OIDCFlow interface {
	BeginLogin(w http.ResponseWriter, r *http.Request) error
	CompleteLogin(w http.ResponseWriter, r *http.Request) (*auth.OIDCPrincipal, error)
	LogoutURL(ctx context.Context) string
}

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	sessions      session.Store
	oidc          OIDCFlow
	dev           *auth.DevAuthenticator
	userStore     *users.Store
	resets        *reset.Manager
	metrics       *observability.Metrics
	logger        *observability.Logger
	secureCookies bool
	now           func() time.Time
}

// NewAuthHandlers creates the auth handler set. oidcFlow may be nil.
func NewAuthHandlers(
	sessions session.Store,
	oidcFlow OIDCFlow,
	dev *auth.DevAuthenticator,
	userStore *users.Store,
	resets *reset.Manager,
	metrics *observability.Metrics,
	logger *observability.Logger,
	secureCookies bool,
) *AuthHandlers {
	return &AuthHandlers{
		sessions:      sessions,
		oidc:          oidcFlow,
		dev:           dev,
		userStore:     userStore,
		resets:        resets,
		metrics:       metrics,
		logger:        logger,
		secureCookies: secureCookies,
		now:           time.Now,
	}
}

// RegisterRoutes registers authentication routes. protected routes are
// registered separately by the server with the auth gate applied.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/login", h.beginOIDCLogin).Methods("GET")
	router.HandleFunc("/api/callback", h.completeOIDCLogin).Methods("GET")
	router.HandleFunc("/api/logout", h.logoutRedirect).Methods("GET")

	router.HandleFunc("/api/auth/login", h.devLogin).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/api/auth/check-email/{email}", h.checkEmail).Methods("GET")
	router.HandleFunc("/api/auth/signup", h.signup).Methods("POST")
	router.HandleFunc("/api/auth/forgot-password", h.forgotPassword).Methods("POST")
	router.HandleFunc("/api/auth/reset-password", h.resetPassword).Methods("POST")
}

// createSession persists a new session for the principal and sets the cookie
func (h *AuthHandlers) createSession(w http.ResponseWriter, r *http.Request, p auth.Principal) error {
	record := session.NewRecord(p, session.DefaultTTL, h.now())
	if err := h.sessions.Put(r.Context(), record); err != nil {
		h.countStoreError("sessions")
		return err
	}
	session.SetCookie(w, record, h.secureCookies)
	if h.metrics != nil {
		h.metrics.SessionsCreated.Inc()
		h.metrics.SessionsActive.Inc()
	}
	return nil
}

// destroySession deletes the current session, if any, and clears the cookie
func (h *AuthHandlers) destroySession(w http.ResponseWriter, r *http.Request) error {
	var err error
	if id := session.IDFromRequest(r); id != "" {
		err = h.sessions.Delete(r.Context(), id)
		if err != nil {
			h.countStoreError("sessions")
		} else if h.metrics != nil {
			h.metrics.SessionsDeleted.Inc()
			h.metrics.SessionsActive.Dec()
		}
	}
	session.ClearCookie(w)
	return err
}

// beginOIDCLogin handles GET /api/login
func (h *AuthHandlers) beginOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		http.Redirect(w, r, loginPagePath, http.StatusFound)
		return
	}
	if err := h.oidc.BeginLogin(w, r); err != nil {
		// Provider discovery failed; the client login page offers dev login.
		h.logger.WithError(err).Warn("OIDC login unavailable, redirecting to local login")
		http.Redirect(w, r, loginPagePath, http.StatusFound)
	}
}

// completeOIDCLogin handles GET /api/callback
func (h *AuthHandlers) completeOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		http.Redirect(w, r, loginPagePath, http.StatusFound)
		return
	}

	principal, err := h.oidc.CompleteLogin(w, r)
	if err != nil {
		h.logger.WithError(err).Warn("OIDC callback failed")
		h.countLogin("oidc", "failure")
		http.Redirect(w, r, loginPagePath, http.StatusFound)
		return
	}

	if err := h.createSession(w, r, principal); err != nil {
		h.logger.WithError(err).Error("failed to create session after OIDC login")
		http.Redirect(w, r, loginPagePath, http.StatusFound)
		return
	}

	h.countLogin("oidc", "success")
	http.Redirect(w, r, "/", http.StatusFound)
}

// logoutRedirect handles GET /api/logout. The local session is cleared
// whether or not the provider round trip can be confirmed.
func (h *AuthHandlers) logoutRedirect(w http.ResponseWriter, r *http.Request) {
	var wasOIDC bool
	if id := session.IDFromRequest(r); id != "" {
		if record, err := h.sessions.Get(r.Context(), id); err == nil {
			_, wasOIDC = record.Principal.(*auth.OIDCPrincipal)
		}
	}

	if err := h.destroySession(w, r); err != nil {
		h.logger.WithError(err).Warn("session delete failed during logout")
	}

	if wasOIDC && h.oidc != nil {
		if logoutURL := h.oidc.LogoutURL(r.Context()); logoutURL != "" {
			http.Redirect(w, r, logoutURL, http.StatusFound)
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// currentUser handles GET /api/auth/user (behind the gate)
func (h *AuthHandlers) currentUser(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromRequest(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var profile Profile
	switch p := identity.Principal.(type) {
	case *auth.OIDCPrincipal:
		profile = Profile{
			ID:              p.Claims.Subject,
			Email:           p.Claims.Email,
			FirstName:       p.Claims.FirstName,
			LastName:        p.Claims.LastName,
			ProfileImageURL: p.Claims.ProfileImageURL,
		}
	case *auth.DevPrincipal:
		profile = Profile{
			ID:        p.ID,
			Email:     p.Email,
			FirstName: p.FirstName,
			LastName:  p.LastName,
		}
	default:
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	httputil.WriteSuccess(w, profile)
}

// devLogin handles POST /api/auth/login
func (h *AuthHandlers) devLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "Email is required")
		return
	}

	principal, err := h.dev.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.countLogin("dev", "failure")
			httputil.WriteUnauthorized(w, "Invalid email or password")
			return
		}
		h.logger.WithError(err).Error("dev login failed")
		httputil.WriteInternalError(w, "")
		return
	}

	if err := h.createSession(w, r, principal); err != nil {
		h.logger.WithError(err).Error("failed to create session after login")
		httputil.WriteInternalError(w, "")
		return
	}

	h.countLogin("dev", "success")
	httputil.WriteSuccess(w, map[string]interface{}{
		"message": "Login successful",
		"user": Profile{
			ID:        principal.ID,
			Email:     principal.Email,
			FirstName: principal.FirstName,
			LastName:  principal.LastName,
		},
	})
}

// logout handles POST /api/auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.destroySession(w, r); err != nil {
		h.logger.WithError(err).Error("failed to destroy session")
		httputil.WriteInternalError(w, "Failed to log out")
		return
	}
	httputil.WriteSuccess(w, map[string]string{"message": "Logged out"})
}

// checkEmail handles GET /api/auth/check-email/{email}
func (h *AuthHandlers) checkEmail(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	exists := h.dev.CheckEmailExists(r.Context(), email)
	httputil.WriteSuccess(w, map[string]bool{"exists": exists})
}

// signup handles POST /api/auth/signup
func (h *AuthHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if details := validateSignup(&req); len(details) > 0 {
		httputil.WriteValidationError(w, "Invalid signup data", details)
		return
	}

	hash, err := auth.HashPassword(req.Step1Data.Password)
	if err != nil {
		h.logger.WithError(err).Error("failed to hash signup password")
		httputil.WriteInternalError(w, "")
		return
	}

	user, err := h.userStore.Create(r.Context(), req.Step1Data.Email, hash,
		req.Step2Data.FullName, req.Step2Data.CompanyName)
	if err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			httputil.WriteBadRequest(w, "User already exists with this email")
			return
		}
		h.countStoreError("users")
		h.logger.WithError(err).Error("failed to create user")
		httputil.WriteInternalError(w, "")
		return
	}

	// The wizard continues straight into the app, so sign the new user in.
	principal := &auth.DevPrincipal{ID: user.ID, Email: user.Email}
	if err := h.createSession(w, r, principal); err != nil {
		h.logger.WithError(err).Warn("signup succeeded but session creation failed")
	}

	httputil.WriteCreated(w, user)
}

// validateSignup returns field-level validation failures, keyed by field path
func validateSignup(req *SignupRequest) map[string]string {
	details := make(map[string]string)

	if req.Step1Data.Email == "" {
		details["step1Data.email"] = "Email is required"
	} else if _, err := mail.ParseAddress(req.Step1Data.Email); err != nil {
		details["step1Data.email"] = "Email is not valid"
	}

	if len(req.Step1Data.Password) < 8 {
		details["step1Data.password"] = "Password must be at least 8 characters"
	}
	if req.Step1Data.Password != req.Step1Data.ConfirmPassword {
		details["step1Data.confirmPassword"] = "Passwords do not match"
	}

	if req.Step2Data.FullName == "" {
		details["step2Data.fullName"] = "Full name is required"
	}
	if !req.Step2Data.AcceptedTerms {
		details["step2Data.acceptedTerms"] = "Terms must be accepted"
	}

	return details
}

// forgotPassword handles POST /api/auth/forgot-password. The response is
// identical whether or not the account exists.
func (h *AuthHandlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "Email is required")
		return
	}

	message := h.resets.Request(r.Context(), req.Email)
	httputil.WriteSuccess(w, map[string]string{"message": message})
}

// resetPassword handles POST /api/auth/reset-password
func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteBadRequest(w, "Invalid or expired reset token")
		return
	}
	if len(req.Password) < 8 {
		httputil.WriteBadRequest(w, "Password must be at least 8 characters")
		return
	}
	if req.Password != req.ConfirmPassword {
		httputil.WriteBadRequest(w, "Passwords do not match")
		return
	}

	if err := h.resets.Consume(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, auth.ErrResetTokenInvalid) {
			httputil.WriteBadRequest(w, "Invalid or expired reset token")
			return
		}
		h.logger.WithError(err).Error("password reset failed")
		httputil.WriteInternalError(w, "")
		return
	}

	httputil.WriteSuccess(w, map[string]string{"message": "Password has been reset"})
}

func (h *AuthHandlers) countLogin(mode, result string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(mode, result).Inc()
	}
}

func (h *AuthHandlers) countStoreError(store string) {
	if h.metrics != nil {
		h.metrics.StoreErrorsTotal.WithLabelValues(store).Inc()
	}
}
