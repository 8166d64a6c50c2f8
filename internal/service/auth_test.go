package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/hd-notes/internal/apperror"
	"github.com/sakif/hd-notes/internal/auth"
	"github.com/sakif/hd-notes/internal/model"
	"github.com/sakif/hd-notes/internal/otp"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory implementation of repository.UserRepository.
// Using a fake (not a mock framework) keeps tests dependency-free and easy
// to read — you can see exactly what the fake does.
type fakeUserRepo struct {
	byID    map[string]*model.User
	byEmail map[string]*model.User
	nextID  int
	// set to a non-nil error to simulate a database failure
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
		nextID:  1,
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[user.Email]; exists {
		return apperror.Conflict("Email already registered. Please login instead.")
	}
	user.ID = fmt.Sprintf("user-fake-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	copied := *user
	f.byID[user.ID] = &copied
	f.byEmail[user.Email] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	return u, nil
}

// fakeMailer records dispatched codes and can simulate delivery failure.
// The code is recorded even on failure, which lets tests prove a challenge
// stayed live after a failed dispatch.
type fakeMailer struct {
	lastEmail string
	lastCode  string
	sent      int
	failErr   error
}

func (f *fakeMailer) SendOTP(ctx context.Context, email, code string) error {
	f.lastEmail = email
	f.lastCode = code
	if f.failErr != nil {
		return f.failErr
	}
	f.sent++
	return nil
}

// testClock is shared by the OTP store and the AuthService so a single
// adjustment moves "now" for both.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestAuthService wires an AuthService with fake collaborators and a
// controllable clock. The OTP TTL is the production 5 minutes — tests move
// the clock instead of sleeping.
func newTestAuthService(t *testing.T, repo *fakeUserRepo, mailer *fakeMailer) (*AuthService, *testClock) {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := otp.NewStoreForTest(5*time.Minute, clock.now)

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewAuthService(repo, store, mailer, tokens, logger)
	svc.now = clock.now
	return svc, clock
}

// issueOTP requests a code for the email and returns what the mailer saw.
func issueOTP(t *testing.T, svc *AuthService, mailer *fakeMailer, email string) string {
	t.Helper()
	if err := svc.SendOTP(context.Background(), email); err != nil {
		t.Fatalf("SendOTP(%s) error = %v", email, err)
	}
	if mailer.lastCode == "" {
		t.Fatal("mailer did not receive a code")
	}
	return mailer.lastCode
}

// =========================================================================
// SendOTP TESTS
// =========================================================================

func TestSendOTP_EmptyEmail(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	err := svc.SendOTP(context.Background(), "   ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("SendOTP(empty) error = %v, want ErrValidation", err)
	}
}

func TestSendOTP_DeliversSixDigitCode(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")

	if mailer.lastEmail != "a@x.com" {
		t.Errorf("mailer email = %q, want %q", mailer.lastEmail, "a@x.com")
	}
	if len(code) != 6 {
		t.Errorf("code = %q, want 6 digits", code)
	}
}

func TestSendOTP_MailFailureIsDeliveryError(t *testing.T) {
	mailer := &fakeMailer{failErr: errors.New("smtp: connection refused")}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	err := svc.SendOTP(context.Background(), "a@x.com")
	if !errors.Is(err, apperror.ErrDelivery) {
		t.Fatalf("SendOTP error = %v, want ErrDelivery", err)
	}
}

// The challenge is NOT rolled back when dispatch fails — it stays live
// until it expires or a new issuance overwrites it.
func TestSendOTP_ChallengeSurvivesMailFailure(t *testing.T) {
	mailer := &fakeMailer{failErr: errors.New("smtp down")}
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo, mailer)

	if err := svc.SendOTP(context.Background(), "a@x.com"); err == nil {
		t.Fatal("SendOTP should fail when the mailer fails")
	}

	// The fake recorded the code even though "delivery" failed; verifying
	// with it proves the challenge is still live.
	result, err := svc.VerifyOTP(context.Background(), "a@x.com", mailer.lastCode, "Ada", "1990-01-01")
	if err != nil {
		t.Fatalf("VerifyOTP after failed dispatch error = %v, want success", err)
	}
	if result.Message != "Signup successful" {
		t.Errorf("Message = %q, want %q", result.Message, "Signup successful")
	}
}

// =========================================================================
// VerifyOTP — CHALLENGE STATE TESTS
// =========================================================================

func TestVerifyOTP_MissingFields(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	cases := []struct{ email, code string }{
		{"", "123456"},
		{"a@x.com", ""},
		{"", ""},
	}
	for _, c := range cases {
		_, err := svc.VerifyOTP(context.Background(), c.email, c.code, "", "")
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("VerifyOTP(%q, %q) error = %v, want ErrValidation", c.email, c.code, err)
		}
	}
}

func TestVerifyOTP_NeverIssued(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	_, err := svc.VerifyOTP(context.Background(), "a@x.com", "123456", "", "")
	if !errors.Is(err, apperror.ErrNoChallenge) {
		t.Fatalf("VerifyOTP error = %v, want ErrNoChallenge", err)
	}
}

func TestVerifyOTP_SucceedsExactlyOnce(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")

	if _, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "Ada", "1990-01-01"); err != nil {
		t.Fatalf("first VerifyOTP error = %v", err)
	}

	// Same (now-consumed) code again → no challenge left.
	_, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "Ada", "1990-01-01")
	if !errors.Is(err, apperror.ErrNoChallenge) {
		t.Fatalf("second VerifyOTP error = %v, want ErrNoChallenge", err)
	}
}

// A wrong code burns the challenge too: after a mismatch, even the correct
// code finds nothing — the user has to request a fresh one.
func TestVerifyOTP_MismatchConsumesChallenge(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := svc.VerifyOTP(context.Background(), "a@x.com", wrong, "", "")
	if !errors.Is(err, apperror.ErrMismatch) {
		t.Fatalf("VerifyOTP(wrong code) error = %v, want ErrMismatch", err)
	}

	_, err = svc.VerifyOTP(context.Background(), "a@x.com", code, "", "")
	if !errors.Is(err, apperror.ErrNoChallenge) {
		t.Fatalf("VerifyOTP(correct code after mismatch) error = %v, want ErrNoChallenge", err)
	}
}

func TestVerifyOTP_Expired(t *testing.T) {
	mailer := &fakeMailer{}
	svc, clock := newTestAuthService(t, newFakeUserRepo(), mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")

	clock.advance(5*time.Minute + time.Second)

	_, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "", "")
	if !errors.Is(err, apperror.ErrExpired) {
		t.Fatalf("VerifyOTP(after TTL) error = %v, want ErrExpired", err)
	}

	// The expired check already consumed the entry — retrying without a
	// fresh issuance finds nothing.
	_, err = svc.VerifyOTP(context.Background(), "a@x.com", code, "", "")
	if !errors.Is(err, apperror.ErrNoChallenge) {
		t.Fatalf("VerifyOTP(retry after expiry) error = %v, want ErrNoChallenge", err)
	}
}

func TestVerifyOTP_ReissueInvalidatesOldCode(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	first := issueOTP(t, svc, mailer, "a@x.com")
	second := issueOTP(t, svc, mailer, "a@x.com")

	if first == second {
		t.Skip("codes collided; old-code invalidation is unobservable this run")
	}

	_, err := svc.VerifyOTP(context.Background(), "a@x.com", first, "", "")
	if !errors.Is(err, apperror.ErrMismatch) {
		t.Fatalf("VerifyOTP(old code) error = %v, want ErrMismatch", err)
	}
}

func TestVerifyOTP_TrimsWhitespace(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")

	// Copy-pasted codes often carry whitespace.
	result, err := svc.VerifyOTP(context.Background(), "  a@x.com  ", "  "+code+"  ", "Ada", "1990-01-01")
	if err != nil {
		t.Fatalf("VerifyOTP(padded input) error = %v, want success", err)
	}
	if result.User.Email != "a@x.com" {
		t.Errorf("User.Email = %q, want trimmed %q", result.User.Email, "a@x.com")
	}
}

// =========================================================================
// VerifyOTP — SIGNUP AND LOGIN TESTS
// =========================================================================

func TestVerifyOTP_SignupCreatesUserAndToken(t *testing.T) {
	mailer := &fakeMailer{}
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo, mailer)

	code := issueOTP(t, svc, mailer, "ada@x.com")

	result, err := svc.VerifyOTP(context.Background(), "ada@x.com", code, "Ada Lovelace", "1815-12-10")
	if err != nil {
		t.Fatalf("VerifyOTP(signup) error = %v", err)
	}

	if result.Message != "Signup successful" {
		t.Errorf("Message = %q, want %q", result.Message, "Signup successful")
	}
	if result.User.Email != "ada@x.com" {
		t.Errorf("User.Email = %q, want the submitted email", result.User.Email)
	}
	if result.User.Name != "Ada Lovelace" {
		t.Errorf("User.Name = %q, want %q", result.User.Name, "Ada Lovelace")
	}
	if result.User.ID == "" {
		t.Error("User.ID should be set after signup")
	}
	if result.Token == "" {
		t.Error("signup should return a non-empty session token")
	}

	// The user must actually be in the directory now.
	stored, err := repo.GetByEmail(context.Background(), "ada@x.com")
	if err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if stored.DOB != "1815-12-10" {
		t.Errorf("stored DOB = %q, want %q", stored.DOB, "1815-12-10")
	}
}

func TestVerifyOTP_SignupTokenIdentifiesUser(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")
	result, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "Ada", "1990-01-01")
	if err != nil {
		t.Fatalf("VerifyOTP(signup) error = %v", err)
	}

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	userID, email, err := tokens.Validate(result.Token)
	if err != nil {
		t.Fatalf("Validate(signup token) error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("token userID = %q, want %q", userID, result.User.ID)
	}
	if email != "a@x.com" {
		t.Errorf("token email = %q, want %q", email, "a@x.com")
	}
}

func TestVerifyOTP_SignupExistingEmailConflicts(t *testing.T) {
	mailer := &fakeMailer{}
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo, mailer)

	// First signup succeeds.
	code := issueOTP(t, svc, mailer, "a@x.com")
	if _, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "Ada", "1990-01-01"); err != nil {
		t.Fatalf("setup signup error = %v", err)
	}

	// Second signup for the same email → conflict ("log in instead").
	code = issueOTP(t, svc, mailer, "a@x.com")
	_, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "Ada Again", "1990-01-01")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("VerifyOTP(duplicate signup) error = %v, want ErrConflict", err)
	}
}

func TestVerifyOTP_LoginUnknownUser(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	code := issueOTP(t, svc, mailer, "ghost@x.com")

	// No name/dob → login path; nobody has signed up with this email.
	_, err := svc.VerifyOTP(context.Background(), "ghost@x.com", code, "", "")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("VerifyOTP(login, unknown user) error = %v, want ErrNotFound", err)
	}
}

func TestVerifyOTP_LoginRoundTrip(t *testing.T) {
	mailer := &fakeMailer{}
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo, mailer)

	// Sign up first.
	code := issueOTP(t, svc, mailer, "a@x.com")
	signup, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "Ada", "1990-01-01")
	if err != nil {
		t.Fatalf("setup signup error = %v", err)
	}

	// Fresh challenge, login path (no name/dob).
	code = issueOTP(t, svc, mailer, "a@x.com")
	login, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "", "")
	if err != nil {
		t.Fatalf("VerifyOTP(login) error = %v", err)
	}

	if login.Message != "Login successful" {
		t.Errorf("Message = %q, want %q", login.Message, "Login successful")
	}
	if login.User.ID != signup.User.ID {
		t.Errorf("login User.ID = %q, want the signup's %q", login.User.ID, signup.User.ID)
	}
	if login.Token == "" {
		t.Error("login should return a non-empty session token")
	}
}

// Name without dob (or vice versa) is not a signup — it's a login with
// stray fields.
func TestVerifyOTP_PartialSignupFieldsMeanLogin(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestAuthService(t, newFakeUserRepo(), mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")

	_, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "Ada", "")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("VerifyOTP(name only) error = %v, want ErrNotFound (login path)", err)
	}
}

func TestVerifyOTP_RepositoryFailure(t *testing.T) {
	mailer := &fakeMailer{}
	repo := newFakeUserRepo()
	repo.getErr = errors.New("database is on fire")
	svc, _ := newTestAuthService(t, repo, mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")

	_, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "", "")
	if err == nil {
		t.Fatal("VerifyOTP should propagate repository errors")
	}
	// Must NOT be mistaken for a client-fixable case.
	if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("repository failure surfaced as a client error: %v", err)
	}
}

// =========================================================================
// GetUserByID TESTS
// =========================================================================

func TestGetUserByID_Found(t *testing.T) {
	mailer := &fakeMailer{}
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo, mailer)

	code := issueOTP(t, svc, mailer, "a@x.com")
	result, err := svc.VerifyOTP(context.Background(), "a@x.com", code, "Ada", "1990-01-01")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	user, err := svc.GetUserByID(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Email != "a@x.com" {
		t.Errorf("user.Email = %q, want %q", user.Email, "a@x.com")
	}
}

func TestGetUserByID_EmptyID(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	if _, err := svc.GetUserByID(context.Background(), ""); err == nil {
		t.Fatal("GetUserByID() should return error for empty ID")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	_, err := svc.GetUserByID(context.Background(), "non-existent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}
