package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"accounts/internal/models"
	"accounts/internal/repository"
)

type memUserRepo struct {
	users map[string]*models.User // keyed by id
}

func newMemUserRepo(users ...*models.User) *memUserRepo {
	m := &memUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Firstname != nil {
		u.Firstname = *req.Firstname
	}
	if req.Lastname != nil {
		u.Lastname = *req.Lastname
	}
	if req.Location != nil {
		u.Location = *req.Location
	}
	return nil
}

func (m *memUserRepo) UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error {
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memUserRepo) UpdateProfilePhoto(ctx context.Context, userID string, filename string) error {
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.ProfilePhoto = filename
	return nil
}

func (m *memUserRepo) SetResetCode(ctx context.Context, userID string, code string, expiresAt time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.ResetCode = &code
	u.ResetCodeExpiresAt = &expiresAt
	return nil
}

func (m *memUserRepo) ClearResetCode(ctx context.Context, userID string) error {
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.ResetCode = nil
	u.ResetCodeExpiresAt = nil
	return nil
}

type memResetRepo struct {
	users  *memUserRepo
	tokens map[string]*models.PasswordResetToken // keyed by token hash
}

func newMemResetRepo(users *memUserRepo) *memResetRepo {
	return &memResetRepo{users: users, tokens: map[string]*models.PasswordResetToken{}}
}

func (m *memResetRepo) Create(ctx context.Context, token *models.PasswordResetToken) error {
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *memResetRepo) Consume(ctx context.Context, tokenHash string, userID string, passwordHash string) error {
	t, ok := m.tokens[tokenHash]
	if !ok || t.UserID != userID || t.UsedAt != nil || t.ExpiresAt.Before(time.Now().UTC()) {
		return repository.ErrResetTokenNotFound
	}
	now := time.Now().UTC()
	t.UsedAt = &now
	if err := m.users.UpdatePasswordHash(ctx, userID, passwordHash); err != nil {
		return err
	}
	return m.users.ClearResetCode(ctx, userID)
}

type recordingMailer struct {
	to   []string
	body []string
	err  error
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.to = append(m.to, to)
	m.body = append(m.body, body)
	return m.err
}

func newTestService(t *testing.T, users *memUserRepo) (*Service, *memResetRepo, *recordingMailer) {
	t.Helper()
	resets := newMemResetRepo(users)
	mailer := &recordingMailer{}
	svc := NewService(users, resets, NewTokenService(testSecret, time.Hour), mailer)
	return svc, resets, mailer
}

func seedUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := (PasswordHasher{}).Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return &models.User{
		ID:           "u1",
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: hash,
		JoinedOn:     time.Now().UTC(),
	}
}

type failingUserRepo struct {
	*memUserRepo
	err error
}

func (f *failingUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, f.err
}

// A store outage must surface as a server error, never as bad credentials,
// a silent success, or a missing user.
func TestStoreFailureIsNotAClientError(t *testing.T) {
	storeErr := errors.New("pq: connection refused")
	users := &failingUserRepo{memUserRepo: newMemUserRepo(), err: storeErr}
	svc := NewService(users, newMemResetRepo(users.memUserRepo), NewTokenService(testSecret, time.Hour), &recordingMailer{})
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@x.com", "longenough1")
	if !errors.Is(err, storeErr) {
		t.Fatalf("Login: expected store error to propagate, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("Login: store failure reported as invalid credentials")
	}

	if _, err := svc.RequestPasswordReset(ctx, "a@x.com"); !errors.Is(err, storeErr) {
		t.Fatalf("RequestPasswordReset: expected store error to propagate, got %v", err)
	}

	_, _, err = svc.VerifyResetCode(ctx, "a@x.com", "1234")
	if !errors.Is(err, storeErr) {
		t.Fatalf("VerifyResetCode: expected store error to propagate, got %v", err)
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Fatal("VerifyResetCode: store failure reported as user not found")
	}
}

func TestDummyHashAlwaysUsable(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, _ := newTestService(t, users)

	if svc.dummyHash == "" {
		t.Fatal("service constructed without a dummy hash")
	}
	// The fallback is a real encoded hash, so the dummy compare always runs
	// the full derivation path.
	if !(PasswordHasher{}).Verify("timing-level-dummy", fallbackDummyHash) {
		t.Fatal("fallback dummy hash is not a valid encoded hash")
	}
}

func TestLoginSuccessIssuesBothTokens(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, _ := newTestService(t, users)

	result, err := svc.Login(context.Background(), "a@x.com", "longenough1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == "" || result.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", result)
	}
	if result.User.ID != "u1" {
		t.Fatalf("expected user u1, got %q", result.User.ID)
	}

	userID, err := svc.tokens.VerifySession(result.Token)
	if err != nil || userID != "u1" {
		t.Fatalf("session token did not verify for u1: %q %v", userID, err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, _ := newTestService(t, users)

	_, errUnknown := svc.Login(context.Background(), "nobody@x.com", "longenough1")
	_, errWrongPw := svc.Login(context.Background(), "a@x.com", "wrongpassword")

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if !errors.Is(errWrongPw, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", errWrongPw)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, _ := newTestService(t, users)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "bob",
		Email:    "a@x.com",
		Password: "longenough1",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRequestResetUnknownEmailIsSilent(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, mailer := newTestService(t, users)

	code, err := svc.RequestPasswordReset(context.Background(), "nobody@x.com")
	if err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if code != "" {
		t.Fatalf("expected no code for unknown email, got %q", code)
	}
	if len(mailer.to) != 0 {
		t.Fatalf("expected no mail, sent to %v", mailer.to)
	}
}

func TestRequestResetStoresCodeAndMailsIt(t *testing.T) {
	u := seedUser(t, "longenough1")
	users := newMemUserRepo(u)
	svc, _, mailer := newTestService(t, users)

	code, err := svc.RequestPasswordReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("expected 4-digit code, got %q", code)
	}
	if u.ResetCode == nil || *u.ResetCode != code {
		t.Fatalf("code not stored on user row")
	}
	if u.ResetCodeExpiresAt == nil {
		t.Fatal("expiry not stored on user row")
	}
	if len(mailer.to) != 1 || mailer.to[0] != "a@x.com" {
		t.Fatalf("expected mail to a@x.com, got %v", mailer.to)
	}
}

func TestRequestResetSwallowsMailFailure(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, mailer := newTestService(t, users)
	mailer.err = errors.New("smtp unavailable")

	if _, err := svc.RequestPasswordReset(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("mail failure should not surface, got %v", err)
	}
}

func TestNewCodeInvalidatesOldCode(t *testing.T) {
	u := seedUser(t, "longenough1")
	users := newMemUserRepo(u)
	svc, _, _ := newTestService(t, users)

	first, err := svc.RequestPasswordReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}

	var second string
	for {
		second, err = svc.RequestPasswordReset(context.Background(), "a@x.com")
		if err != nil {
			t.Fatalf("second request: %v", err)
		}
		if second != first {
			break
		}
	}

	if _, _, err := svc.VerifyResetCode(context.Background(), "a@x.com", first); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected old code to mismatch after reissue, got %v", err)
	}
	if _, _, err := svc.VerifyResetCode(context.Background(), "a@x.com", second); err != nil {
		t.Fatalf("expected newest code to verify, got %v", err)
	}
}

func TestFullResetSequence(t *testing.T) {
	u := seedUser(t, "oldpassword1")
	users := newMemUserRepo(u)
	svc, _, _ := newTestService(t, users)
	ctx := context.Background()

	code, err := svc.RequestPasswordReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}

	token, expiresAt, err := svc.VerifyResetCode(ctx, "a@x.com", code)
	if err != nil {
		t.Fatalf("VerifyResetCode: %v", err)
	}
	if token == "" || expiresAt.Before(time.Now()) {
		t.Fatalf("unexpected token/expiry: %q %v", token, expiresAt)
	}
	if u.ResetCode != nil {
		t.Fatal("code should be cleared once exchanged for a reset token")
	}

	if err := svc.ResetPassword(ctx, token, "brandnewpassword"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := svc.Login(ctx, "a@x.com", "oldpassword1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	if _, err := svc.Login(ctx, "a@x.com", "brandnewpassword"); err != nil {
		t.Fatalf("new password should work, got %v", err)
	}

	// The consumed token must not allow a second change.
	if err := svc.ResetPassword(ctx, token, "anothernewpassword"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected consumed token to be rejected, got %v", err)
	}
}

func TestVerifyResetCodeUnknownUser(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, _ := newTestService(t, users)

	if _, _, err := svc.VerifyResetCode(context.Background(), "nobody@x.com", "1234"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestResetPasswordTooShort(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, _ := newTestService(t, users)

	if err := svc.ResetPassword(context.Background(), "whatever", "short7c"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestResetPasswordRejectsSessionToken(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, _ := newTestService(t, users)

	sessionToken, err := svc.tokens.IssueSession("u1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if err := svc.ResetPassword(context.Background(), sessionToken, "brandnewpassword"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected session token to be rejected, got %v", err)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	users := newMemUserRepo(seedUser(t, "longenough1"))
	svc, _, _ := newTestService(t, users)
	ctx := context.Background()

	result, err := svc.Login(ctx, "a@x.com", "longenough1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	token, expiresIn, err := svc.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if expiresIn != 3600 {
		t.Fatalf("expected expires_in 3600, got %d", expiresIn)
	}
	if userID, err := svc.tokens.VerifySession(token); err != nil || userID != "u1" {
		t.Fatalf("refreshed token did not verify: %q %v", userID, err)
	}

	// A session token is not a refresh token.
	if _, _, err := svc.Refresh(ctx, result.Token); err == nil {
		t.Fatal("session token accepted for refresh")
	}
}
