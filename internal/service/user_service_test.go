package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"diaspora-api/internal/domain"
	"diaspora-api/internal/email"
	"diaspora-api/internal/events"
	"diaspora-api/internal/repository"
)

type mockUserRepo struct {
	mu        sync.Mutex
	usersByID map[string]domain.User
	byEmail   map[string]string
	getErr    error
	createErr error
	creates   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID: make(map[string]domain.User),
		byEmail:   make(map[string]string),
	}
}

func (m *mockUserRepo) GetOne(_ context.Context, filter domain.UserFilter) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.User{}, m.getErr
	}
	id, ok := m.byEmail[filter.Email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) GetAll(_ context.Context, filter domain.UserFilter) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0)
	for _, u := range m.usersByID {
		if filter.UserType != "" && u.UserType != filter.UserType {
			continue
		}
		if filter.Email != "" && u.Email != filter.Email {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.byEmail[user.Email]; exists {
		return fmt.Errorf("%w: users_email_key", repository.ErrDuplicateEmail)
	}
	m.usersByID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.usersByID)
}

type mockEmailSender struct {
	mu     sync.Mutex
	sent   []email.Message
	err    error
	delay  time.Duration
	failTo map[string]bool
}

func (m *mockEmailSender) Send(ctx context.Context, msg email.Message) (email.Receipt, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return email.Receipt{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if m.err != nil {
		return email.Receipt{}, m.err
	}
	if m.failTo[msg.To] {
		return email.Receipt{}, errors.New("mailbox unavailable")
	}
	return email.Receipt{MessageID: "msg-" + msg.To, Transport: "mock"}, nil
}

func (m *mockEmailSender) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockTokenIssuer struct {
	calls int
	err   error
}

func (m *mockTokenIssuer) Issue(user domain.User) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "token-" + user.ID, nil
}

type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, subject string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type allowAll struct{ allow bool }

func (a allowAll) Allow(context.Context, string) bool { return a.allow }

type fixture struct {
	repo   *mockUserRepo
	sender *mockEmailSender
	tokens *mockTokenIssuer
	svc    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   newMockUserRepo(),
		sender: &mockEmailSender{},
		tokens: &mockTokenIssuer{},
	}
	f.svc = NewUserService(
		zap.NewNop(),
		f.repo,
		BcryptHasher{Cost: bcrypt.MinCost},
		f.tokens,
		email.NewDispatcher(f.sender, zap.NewNop()),
		allowAll{allow: true},
		MailSettings{
			From:     "noreply@example.com",
			FromName: "Diaspora Invest",
			BaseURL:  "http://localhost:8080",
			Timeout:  time.Second,
		},
	)
	return f
}

func validSignup() SignupInput {
	return SignupInput{
		Name:      "A",
		Email:     "a@x.com",
		Phone:     "1",
		Password:  "p",
		Password2: "p",
		UserType:  "buyer",
	}
}

func TestUserServiceSignup_PasswordMismatch(t *testing.T) {
	f := newFixture(t)
	in := validSignup()
	in.Password2 = "q"

	_, err := f.svc.Signup(context.Background(), in)
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if f.sender.sentCount() != 0 || f.repo.count() != 0 {
		t.Fatalf("expected no mail and no user")
	}
}

func TestUserServiceSignup_EmailTaken(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Signup(context.Background(), validSignup()); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	in := validSignup()
	in.Email = "  A@X.com "
	_, err := f.svc.Signup(context.Background(), in)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if f.sender.sentCount() != 1 || f.repo.count() != 1 {
		t.Fatalf("expected the second signup to send no mail and create no user")
	}
}

func TestUserServiceSignup_Success(t *testing.T) {
	f := newFixture(t)
	pub := &mockPublisher{}
	f.svc.WithPublisher(pub)

	user, err := f.svc.Signup(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.ID == "" || user.Name != "A" || user.Email != "a@x.com" || user.Phone != "1" || user.UserType != "buyer" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "p" {
		t.Fatalf("expected hashed password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("p")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected exactly one user, got %d", f.repo.count())
	}

	if f.sender.sentCount() != 1 {
		t.Fatalf("expected one verification mail")
	}
	msg := f.sender.sent[0]
	if msg.To != "a@x.com" || msg.From != "noreply@example.com" || msg.Subject != email.SignupSubject {
		t.Fatalf("unexpected message: %+v", msg)
	}
	link := regexp.MustCompile(`http://localhost:8080/api/v1/public/verify-email/[0-9a-f]{40}`)
	if !link.MatchString(msg.HTML) {
		t.Fatalf("verification link missing from body: %s", msg.HTML)
	}

	if len(pub.subjects) != 1 || pub.subjects[0] != events.SubjectUserCreated {
		t.Fatalf("expected user created event, got %+v", pub.subjects)
	}
}

func TestUserServiceSignup_MailFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("smtp down")

	_, err := f.svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, ErrEmailSendFailure) {
		t.Fatalf("expected ErrEmailSendFailure, got %v", err)
	}
	if f.repo.count() != 0 || f.repo.creates != 0 {
		t.Fatalf("expected no user to be created")
	}
}

func TestUserServiceSignup_MailTimeout(t *testing.T) {
	f := newFixture(t)
	f.sender.delay = time.Minute
	f.svc.mail.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := f.svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, ErrEmailSendFailure) {
		t.Fatalf("expected ErrEmailSendFailure, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("signup did not honour the mail timeout")
	}
	if f.repo.count() != 0 {
		t.Fatalf("expected no user to be created")
	}
}

func TestUserServiceSignup_StoreConflictIsEmailTaken(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = fmt.Errorf("%w: users_email_key", repository.ErrDuplicateEmail)

	_, err := f.svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken from store conflict, got %v", err)
	}
}

func TestUserServiceSignup_StoreFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New("connection reset")

	_, err := f.svc.Signup(context.Background(), validSignup())
	if err == nil || errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected generic store error, got %v", err)
	}

	f = newFixture(t)
	f.repo.getErr = errors.New("connection reset")
	if _, err := f.svc.Signup(context.Background(), validSignup()); err == nil {
		t.Fatalf("expected lookup error")
	}
	if f.sender.sentCount() != 0 {
		t.Fatalf("expected no mail on lookup failure")
	}
}

func TestUserServiceSignup_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.svc.limiter = allowAll{allow: false}

	_, err := f.svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if f.sender.sentCount() != 0 {
		t.Fatalf("expected no mail when rate limited")
	}
}

func TestUserServiceSignup_ConcurrentOutcomesAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.sender.failTo = map[string]bool{}
	for i := 0; i < 10; i += 2 {
		f.sender.failTo[fmt.Sprintf("user%d@x.com", i)] = true
	}

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validSignup()
			in.Email = fmt.Sprintf("user%d@x.com", i)
			_, errs[i] = f.svc.Signup(context.Background(), in)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		failed := i%2 == 0
		if failed && !errors.Is(err, ErrEmailSendFailure) {
			t.Fatalf("signup %d: expected mail failure, got %v", i, err)
		}
		if !failed && err != nil {
			t.Fatalf("signup %d: expected success, got %v", i, err)
		}
	}
	if f.repo.count() != 5 {
		t.Fatalf("expected 5 users, got %d", f.repo.count())
	}
}

func TestUserServiceLogin_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, token, err := f.svc.Login(context.Background(), "missing@x.com", "p")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if token != "" || f.tokens.calls != 0 {
		t.Fatalf("expected no token to be issued")
	}
}

func TestUserServiceLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Signup(context.Background(), validSignup()); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, token, err := f.svc.Login(context.Background(), "a@x.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if token != "" || f.tokens.calls != 0 {
		t.Fatalf("expected no token to be issued")
	}
}

func TestUserServiceLogin_Success(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Signup(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	user, token, err := f.svc.Login(context.Background(), " A@x.com", "p")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("expected user %s, got %s", created.ID, user.ID)
	}
	if token == "" || f.tokens.calls != 1 {
		t.Fatalf("expected one issued token")
	}
}

func TestUserServiceLogin_InfrastructureErrors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Signup(context.Background(), validSignup()); err != nil {
		t.Fatalf("signup: %v", err)
	}

	f.tokens.err = errors.New("signing failed")
	_, _, err := f.svc.Login(context.Background(), "a@x.com", "p")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected generic token error, got %v", err)
	}

	f.repo.getErr = errors.New("connection reset")
	_, _, err = f.svc.Login(context.Background(), "a@x.com", "p")
	if err == nil || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected generic lookup error, got %v", err)
	}
}

func TestUserServiceList_PassesFilterThrough(t *testing.T) {
	f := newFixture(t)
	for _, in := range []SignupInput{
		{Name: "A", Email: "a@x.com", Password: "p", Password2: "p", UserType: "buyer"},
		{Name: "B", Email: "b@x.com", Password: "p", Password2: "p", UserType: "seller"},
	} {
		if _, err := f.svc.Signup(context.Background(), in); err != nil {
			t.Fatalf("signup: %v", err)
		}
	}

	users, err := f.svc.List(context.Background(), domain.UserFilter{UserType: "seller"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 || users[0].Email != "b@x.com" {
		t.Fatalf("unexpected users: %+v", users)
	}

	all, _ := f.svc.List(context.Background(), domain.UserFilter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 users, got %d", len(all))
	}
}

func TestGenerateVerificationCode(t *testing.T) {
	a, err := generateVerificationCode()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := generateVerificationCode()
	if len(a) != 40 || strings.Trim(a, "0123456789abcdef") != "" {
		t.Fatalf("expected 40 hex chars, got %q", a)
	}
	if a == b {
		t.Fatalf("expected distinct codes")
	}
}
