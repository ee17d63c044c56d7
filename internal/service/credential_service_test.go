package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var tokenInBody = regexp.MustCompile(`token is ([A-Za-z0-9]{8})\.`)

type serviceFixture struct {
	svc    *CredentialService
	repo   *mockUserRepo
	sender *mockEmailSender
	clock  *fakeClock
}

func newServiceFixture(t *testing.T, opts CredentialOptions) serviceFixture {
	t.Helper()
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	clock := newFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	hasher := NewBcryptHasher(bcrypt.MinCost, 2)
	resets := NewResetTokenManager(repo, hasher, clock, nil, DefaultResetWindow)
	tokens := NewSessionTokenCodec("secret", DefaultSessionTTL, clock, NewMemoryRevocationStore(clock), zap.NewNop())
	svc := NewCredentialService(zap.NewNop(), repo, hasher, resets, tokens, sender, clock, opts)
	return serviceFixture{svc: svc, repo: repo, sender: sender, clock: clock}
}

func (f serviceFixture) register(t *testing.T, name, email, password string) {
	t.Helper()
	res, err := f.svc.RegisterUser(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if res.Status != StatusCreated {
		t.Fatalf("expected StatusCreated, got %v", res.Status)
	}
}

func sentToken(t *testing.T, sender *mockEmailSender) string {
	t.Helper()
	m := tokenInBody.FindStringSubmatch(sender.lastBody)
	if m == nil {
		t.Fatalf("expected token in email body %q", sender.lastBody)
	}
	return m[1]
}

func TestCredentialService_AnnScenario(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{AppName: "Cred"})
	ctx := context.Background()

	f.register(t, "Ann", "ann@example.com", "secret1")

	res, err := f.svc.AuthenticateUser(ctx, "ann@example.com", "secret1")
	if err != nil || res.Message != "ann@example.com" {
		t.Fatalf("expected authenticated ann, got %+v %v", res, err)
	}
	if _, err := f.svc.AuthenticateUser(ctx, "ann@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := f.svc.InitResetPassword(ctx, "ann@example.com"); err != nil {
		t.Fatalf("init reset: %v", err)
	}
	if !f.repo.users["ann@example.com"].HasPendingReset() {
		t.Fatalf("expected pending reset")
	}
	token := sentToken(t, f.sender)

	f.clock.Advance(30 * time.Second)
	res, err = f.svc.FinishResetPassword(ctx, "ann@example.com", token, "secret2")
	if err != nil || res.Status != StatusOK {
		t.Fatalf("finish reset: %+v %v", res, err)
	}
	if f.repo.users["ann@example.com"].HasPendingReset() {
		t.Fatalf("expected temp fields cleared")
	}

	if _, err := f.svc.AuthenticateUser(ctx, "ann@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := f.svc.AuthenticateUser(ctx, "ann@example.com", "secret2"); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}
}

func TestCredentialService_RegisterDuplicate(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	f.register(t, "Ann", "ann@example.com", "secret1")

	_, err := f.svc.RegisterUser(context.Background(), RegisterInput{Name: "Ann 2", Email: "ann@example.com", Password: "other"})
	if !errors.Is(err, ErrUserExists) || StatusOf(err) != StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCredentialService_RegisterValidation(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	ctx := context.Background()

	cases := []RegisterInput{
		{Name: "", Email: "ann@example.com", Password: "secret1"},
		{Name: "   ", Email: "ann@example.com", Password: "secret1"},
		{Name: "Ann", Email: "  ", Password: "secret1"},
		{Name: "Ann", Email: "not-an-email", Password: "secret1"},
		{Name: "Ann", Email: "ann@example.com", Password: "   "},
		{Name: strings.Repeat("a", 51), Email: "ann@example.com", Password: "secret1"},
		{Name: "Ann", Email: "ann@example.com", Password: strings.Repeat("x", 73)},
	}
	for _, in := range cases {
		if _, err := f.svc.RegisterUser(ctx, in); StatusOf(err) != StatusValidation {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
	if len(f.repo.users) != 0 {
		t.Fatalf("expected store untouched on validation failures")
	}
}

func TestCredentialService_RegisterTrimsAndStoresHash(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	f.register(t, "  Ann  ", " ann@example.com ", "secret1")

	user, ok := f.repo.users["ann@example.com"]
	if !ok {
		t.Fatalf("expected trimmed email key")
	}
	if user.Name != "Ann" || user.ID == "" || !user.CreatedAt.Equal(f.clock.Now()) {
		t.Fatalf("unexpected stored user: %+v", user)
	}
	if user.HashedPassword == "" || user.HashedPassword == "secret1" {
		t.Fatalf("expected hashed password, got %q", user.HashedPassword)
	}
}

func TestCredentialService_RegisterStoreFailureIsInternal(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	f.repo.createErr = errors.New("db down")

	_, err := f.svc.RegisterUser(context.Background(), RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	if StatusOf(err) != StatusInternal || MessageOf(err) != internalMessage {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestCredentialService_AuthenticateUnknownUser(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	if _, err := f.svc.AuthenticateUser(context.Background(), "missing@example.com", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	hidden := newServiceFixture(t, CredentialOptions{HideUnknownUser: true})
	if _, err := hidden.svc.AuthenticateUser(context.Background(), "missing@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials with HideUnknownUser, got %v", err)
	}
	if _, err := f.svc.AuthenticateUser(context.Background(), "", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCredentialService_ChangePassword(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	ctx := context.Background()
	f.register(t, "Ann", "ann@example.com", "secret1")

	if _, err := f.svc.ChangePassword(ctx, "ann@example.com", "wrong", "secret2"); !errors.Is(err, ErrInvalidOldPassword) {
		t.Fatalf("expected ErrInvalidOldPassword, got %v", err)
	}
	res, err := f.svc.ChangePassword(ctx, "ann@example.com", "secret1", "secret2")
	if err != nil || res.Message != "Update password successfully!" {
		t.Fatalf("change password: %+v %v", res, err)
	}
	if _, err := f.svc.AuthenticateUser(ctx, "ann@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := f.svc.AuthenticateUser(ctx, "ann@example.com", "secret2"); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}
	if _, err := f.svc.ChangePassword(ctx, "missing@example.com", "a", "b"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := f.svc.ChangePassword(ctx, "ann@example.com", "secret2", " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCredentialService_InitResetEmail(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{AppName: "Cred"})
	f.register(t, "Ann", "ann@example.com", "secret1")

	res, err := f.svc.InitResetPassword(context.Background(), "ann@example.com")
	if err != nil || res.Message != "Check mail for instruction" {
		t.Fatalf("init reset: %+v %v", res, err)
	}
	if f.sender.calls != 1 || f.sender.lastTo != "ann@example.com" || f.sender.lastSubject != "Reset password request" {
		t.Fatalf("unexpected email: %+v", f.sender)
	}
	for _, want := range []string{"Hello Ann", "valid for only 2 minutes", "Thank you, Cred"} {
		if !strings.Contains(f.sender.lastBody, want) {
			t.Fatalf("expected %q in body %q", want, f.sender.lastBody)
		}
	}
	token := sentToken(t, f.sender)
	if strings.Contains(f.repo.users["ann@example.com"].TempHashedPassword, token) {
		t.Fatalf("expected plaintext token not stored")
	}

	if _, err := f.svc.InitResetPassword(context.Background(), "missing@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCredentialService_InitResetRollsBackOnSendFailure(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	f.register(t, "Ann", "ann@example.com", "secret1")
	f.sender.err = errors.New("smtp down")

	_, err := f.svc.InitResetPassword(context.Background(), "ann@example.com")
	if !errors.Is(err, ErrNotificationFailed) || StatusOf(err) != StatusUnavailable {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}
	if f.repo.users["ann@example.com"].HasPendingReset() {
		t.Fatalf("expected pending reset rolled back")
	}
}

func TestCredentialService_InitResetRollbackKeepsConcurrentPasswordChange(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	ctx := context.Background()
	f.register(t, "Ann", "ann@example.com", "secret1")
	f.sender.err = errors.New("smtp down")
	f.sender.onSend = func() {
		if _, err := f.svc.ChangePassword(ctx, "ann@example.com", "secret1", "secret2"); err != nil {
			t.Errorf("concurrent change password: %v", err)
		}
	}

	if _, err := f.svc.InitResetPassword(ctx, "ann@example.com"); !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}
	if f.repo.users["ann@example.com"].HasPendingReset() {
		t.Fatalf("expected pending reset rolled back")
	}
	f.sender.onSend = nil
	if _, err := f.svc.AuthenticateUser(ctx, "ann@example.com", "secret2"); err != nil {
		t.Fatalf("expected concurrent password change kept, got %v", err)
	}
}

func TestCredentialService_FinishResetExpiredAndWrongToken(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	ctx := context.Background()
	f.register(t, "Ann", "ann@example.com", "secret1")

	if _, err := f.svc.FinishResetPassword(ctx, "ann@example.com", "AAAAAAAA", "secret2"); !errors.Is(err, ErrResetNotRequested) {
		t.Fatalf("expected ErrResetNotRequested, got %v", err)
	}

	if _, err := f.svc.InitResetPassword(ctx, "ann@example.com"); err != nil {
		t.Fatalf("init reset: %v", err)
	}
	token := sentToken(t, f.sender)

	wrong := "zzzzzzzz"
	if token == wrong {
		wrong = "yyyyyyyy"
	}
	if _, err := f.svc.FinishResetPassword(ctx, "ann@example.com", wrong, "secret2"); StatusOf(err) != StatusUnauthorized {
		t.Fatalf("expected unauthorized for wrong token, got %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	_, err := f.svc.FinishResetPassword(ctx, "ann@example.com", token, "secret2")
	if !errors.Is(err, ErrResetExpired) || MessageOf(err) != "Time out! Try again" {
		t.Fatalf("expected ErrResetExpired, got %v", err)
	}
	if _, err := f.svc.AuthenticateUser(ctx, "ann@example.com", "secret1"); err != nil {
		t.Fatalf("expected original password kept after expiry, got %v", err)
	}
	if _, err := f.svc.FinishResetPassword(ctx, "ann@example.com", " ", "secret2"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCredentialService_ProfileAndImage(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	ctx := context.Background()
	f.register(t, "Ann", "ann@example.com", "secret1")

	p, err := f.svc.UpdateImageURL(ctx, "ann@example.com", "/images/my_image-1.png")
	if err != nil {
		t.Fatalf("update image: %v", err)
	}
	if p.ImageURL != "/images/my_image-1.png" {
		t.Fatalf("unexpected profile %+v", p)
	}

	p, err = f.svc.GetProfile(ctx, "ann@example.com")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Name != "Ann" || p.Email != "ann@example.com" || p.ImageURL != "/images/my_image-1.png" || p.CreatedAt.IsZero() {
		t.Fatalf("unexpected profile %+v", p)
	}

	if _, err := f.svc.GetProfile(ctx, "missing@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateImageURL(ctx, "missing@example.com", "/x.png"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateImageURL(ctx, "ann@example.com", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCredentialService_SessionTokens(t *testing.T) {
	f := newServiceFixture(t, CredentialOptions{})
	ctx := context.Background()

	tok, err := f.svc.IssueSessionToken("ann@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !f.svc.VerifySessionToken(ctx, tok.Token, "ann@example.com") {
		t.Fatalf("expected token valid")
	}
	if f.svc.VerifySessionToken(ctx, tok.Token, "bob@example.com") {
		t.Fatalf("expected token rejected for another owner")
	}
	if err := f.svc.RevokeSessionToken(ctx, tok.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if f.svc.VerifySessionToken(ctx, tok.Token, "ann@example.com") {
		t.Fatalf("expected revoked token rejected")
	}
	if err := f.svc.RevokeSessionToken(ctx, "garbage"); StatusOf(err) != StatusUnauthorized {
		t.Fatalf("expected unauthorized for garbage token, got %v", err)
	}
}
