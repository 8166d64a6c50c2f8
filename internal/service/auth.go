// Package service — authentication business logic.
//
// AuthService is the business logic layer for the OTP flow. It sits between
// the HTTP handlers and its collaborators:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ otp.Store (challenge state)
//	                   ↘ mail.Sender (code delivery)
//	                   ↘ TokenService (JWT)
//
// KEY RESPONSIBILITIES:
//   - Issue challenges: generate the code, store it, dispatch the email
//   - Verify challenges: consume the entry, check expiry and code, then
//     branch into signup (create the user) or login (resolve the user)
//   - Encapsulate all auth rules in one place, away from HTTP concerns
//   - Be easily testable with fake dependencies
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/hd-notes/internal/apperror"
	"github.com/sakif/hd-notes/internal/auth"
	"github.com/sakif/hd-notes/internal/mail"
	"github.com/sakif/hd-notes/internal/model"
	"github.com/sakif/hd-notes/internal/otp"
	"github.com/sakif/hd-notes/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users   repository.UserRepository → read/write user records
//   - otps    *otp.Store                → transient challenge state
//   - mailer  mail.Sender               → OTP delivery
//   - tokens  *auth.TokenService        → generate/validate JWTs
//   - logger  *slog.Logger              → structured logging
type AuthService struct {
	users  repository.UserRepository
	otps   *otp.Store
	mailer mail.Sender
	tokens *auth.TokenService
	logger *slog.Logger

	now func() time.Time // injectable clock for expiry tests
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	otps *otp.Store,
	mailer mail.Sender,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		otps:   otps,
		mailer: mailer,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// VerifyResult is returned by successful verifications. It bundles the
// outcome message, the user's public fields, and the session token so the
// handler can respond in one step.
type VerifyResult struct {
	Message string           `json:"message"`
	User    model.PublicUser `json:"user"`
	Token   string           `json:"token"`
}

// SendOTP issues a challenge for the email and dispatches the code.
//
// A new issuance overwrites any prior challenge for the address, so a
// previously emailed code stops working the moment this returns.
//
// DISPATCH FAILURE:
// If the mail collaborator fails, the stored challenge is NOT rolled back.
// The entry is unreachable (the user never saw the code) but harmless — it
// self-expires, and the next send-otp overwrites it anyway.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperror.ValidationFailed("email", "Email is required")
	}

	code, err := s.otps.Issue(email)
	if err != nil {
		s.logger.Error("failed to issue otp",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/auth: issuing otp: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, email, code); err != nil {
		s.logger.Error("failed to send otp mail",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return apperror.DeliveryFailed(err)
	}

	s.logger.Info("otp issued", slog.String("email", email))
	return nil
}

// VerifyOTP checks a submitted code and completes signup or login.
//
// CHALLENGE CHECKS, IN ORDER:
//  1. Consume the entry — missing means never issued or already used.
//     Consumption is unconditional: whatever happens next, this challenge
//     is spent. A failed attempt needs a fresh send-otp, not a retry.
//  2. Expiry (lazy — there is no background sweeper).
//  3. Code match (constant-time, against the stored hash).
//
// SIGNUP vs LOGIN:
// Presence of both name and dob signals signup. Signup fails with a
// conflict if the email is already registered ("log in instead"); login
// fails with not-found if it isn't ("sign up first"). Either way the
// outcome is a 24-hour session token plus the user's public fields.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code, name, dob string) (*VerifyResult, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperror.ValidationFailed("otp", "Email and OTP are required")
	}

	challenge, ok := s.otps.Consume(email)
	if !ok {
		return nil, apperror.NoChallenge()
	}

	if challenge.Expired(s.now()) {
		return nil, apperror.Expired()
	}

	if !challenge.Match(code) {
		s.logger.Warn("otp mismatch", slog.String("email", email))
		return nil, apperror.Mismatch()
	}

	name = strings.TrimSpace(name)
	dob = strings.TrimSpace(dob)
	if name != "" && dob != "" {
		return s.signup(ctx, email, name, dob)
	}
	return s.login(ctx, email)
}

// signup creates a new user record and issues their first session token.
func (s *AuthService) signup(ctx context.Context, email, name, dob string) (*VerifyResult, error) {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperror.Conflict("Email already registered. Please login instead.")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up user %s: %w", email, err)
	}

	user := &model.User{
		Name:  name,
		DOB:   dob,
		Email: email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The UNIQUE index can still fire if two signups race between the
		// lookup and the insert — surface it as the same conflict.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %s: %w", email, err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &VerifyResult{
		Message: "Signup successful",
		User:    user.Public(),
		Token:   token,
	}, nil
}

// login resolves an existing user and issues a session token.
func (s *AuthService) login(ctx context.Context, email string) (*VerifyResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found. Please sign up first.")
		}
		return nil, fmt.Errorf("service/auth: looking up user %s: %w", email, err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &VerifyResult{
		Message: "Login successful",
		User:    user.Public(),
		Token:   token,
	}, nil
}

// GetUserByID returns the user for the given internal ID.
//
// Used by the /api/me handler to look up the full record after the
// middleware validates the JWT and extracts the userID from the token's
// Subject claim.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
