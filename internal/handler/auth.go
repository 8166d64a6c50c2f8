package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/hd-notes/internal/auth"
	"github.com/sakif/hd-notes/internal/service"
)

// AuthHandler exposes the OTP authentication flow over HTTP.
//
// ENDPOINTS:
//   - POST /api/auth/send-otp   → issue a challenge, email the code
//   - POST /api/auth/verify-otp → check the code, complete signup or login
//   - GET  /api/me              → current user (RequireAuth-protected)
//
// The handler parses JSON and writes responses; every rule about codes,
// expiry, signup vs login lives in the AuthService.
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// sendOTPRequest is the body of POST /api/auth/send-otp.
type sendOTPRequest struct {
	Email string `json:"email"`
}

// verifyOTPRequest is the body of POST /api/auth/verify-otp.
// Name and DOB are optional — present together, they signal signup.
type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	Name  string `json:"name"`
	DOB   string `json:"dob"`
}

// HandleSendOTP issues and emails a one-time passcode.
//
// HTTP: POST /api/auth/send-otp
// REQUEST BODY: {"email": "a@x.com"}
// RESPONSES: 200 {message} | 400 missing email | 500 dispatch failure
func (h *AuthHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid send-otp JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	if err := h.authService.SendOTP(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent successfully"})
}

// HandleVerifyOTP checks a submitted code and completes signup or login.
//
// HTTP: POST /api/auth/verify-otp
// REQUEST BODY: {"email", "otp", "name"?, "dob"?}
// RESPONSES:
//
//	200 {message, user:{id,name,email}, token}
//	400 missing fields / no challenge / expired / invalid code
//	404 no such user (login path)
//	409 user already exists (signup path)
//	500 internal
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid verify-otp JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	result, err := h.authService.VerifyOTP(r.Context(), req.Email, req.OTP, req.Name, req.DOB)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	// Auth middleware has already validated the JWT and set userID in
	// context, so this only fails if the route is miswired.
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}
