package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"diaspora-api/internal/domain"
	"diaspora-api/internal/email"
	"diaspora-api/internal/events"
	"diaspora-api/internal/metrics"
	"diaspora-api/internal/repository"
)

// MailDispatcher entrega un correo y publica su desenlace en un canal propio de la llamada.
type MailDispatcher interface {
	Dispatch(ctx context.Context, msg email.Message) <-chan email.Result
}

// MailSettings agrupa los datos necesarios para armar el correo de verificacion.
type MailSettings struct {
	From     string
	FromName string
	BaseURL  string
	Timeout  time.Duration
}

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	mailer    MailDispatcher
	limiter   MailRateLimiter
	mail      MailSettings
	publisher events.Publisher
	metrics   *metrics.Metrics
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	mailer MailDispatcher,
	limiter MailRateLimiter,
	mail MailSettings,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewMemoryMailRateLimiter(10*time.Minute, 3)
	}
	return &UserService{
		logger:    logger,
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		mailer:    mailer,
		limiter:   limiter,
		mail:      mail,
		publisher: events.NewNoopPublisher(),
	}
}

// WithPublisher configura el destino de los eventos de dominio.
func (s *UserService) WithPublisher(p events.Publisher) *UserService {
	if p != nil {
		s.publisher = p
	}
	return s
}

func (s *UserService) WithMetrics(m *metrics.Metrics) *UserService {
	s.metrics = m
	return s
}

type SignupInput struct {
	Name      string
	Email     string
	Phone     string
	Password  string
	Password2 string
	UserType  string
}

var (
	ErrPasswordMismatch   = errors.New("password does not match")
	ErrEmailTaken         = errors.New("email has been taken")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrRateLimited        = errors.New("rate limited")
	ErrEmailSendFailure   = errors.New("email send failed")
)

// Signup valida la solicitud, envia el correo de verificacion y, solo si el
// transporte lo acepta, persiste el usuario.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (domain.User, error) {
	if s.users == nil || s.hasher == nil || s.mailer == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	if input.Password != input.Password2 {
		s.metrics.Signup("password_mismatch")
		return domain.User{}, ErrPasswordMismatch
	}

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		s.metrics.Signup("invalid_email")
		return domain.User{}, ErrInvalidEmail
	}

	// Camino rapido; la restriccion unica de la tabla es la fuente de verdad.
	_, err := s.users.GetOne(ctx, domain.UserFilter{Email: emailAddr})
	switch {
	case err == nil:
		s.metrics.Signup("email_taken")
		return domain.User{}, ErrEmailTaken
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.User{}, err
	}

	if !s.limiter.Allow(ctx, emailAddr) {
		s.metrics.Signup("rate_limited")
		return domain.User{}, ErrRateLimited
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	code, err := generateVerificationCode()
	if err != nil {
		return domain.User{}, fmt.Errorf("generate verification code: %w", err)
	}
	msg := email.SignupVerification(
		s.mail.From,
		s.mail.FromName,
		emailAddr,
		email.VerificationLink(s.mail.BaseURL, code),
	)

	receipt, err := s.deliver(ctx, msg)
	if err != nil {
		s.metrics.Signup("mail_failed")
		s.logger.Warn("verification email failed", zap.String("email", emailAddr), zap.Error(err))
		return domain.User{}, fmt.Errorf("%w: %v", ErrEmailSendFailure, err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        emailAddr,
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: passwordHash,
		UserType:     strings.TrimSpace(input.UserType),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.Signup("email_taken")
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	s.metrics.Signup("success")
	s.logger.Info("user signed up",
		zap.String("user_id", user.ID),
		zap.String("message_id", receipt.MessageID),
	)
	s.publishCreated(ctx, user)
	return user, nil
}

// deliver espera el resultado del envio, acotado por MailSettings.Timeout y el contexto.
func (s *UserService) deliver(ctx context.Context, msg email.Message) (email.Receipt, error) {
	if s.mail.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.mail.Timeout)
		defer cancel()
	}

	start := time.Now()
	select {
	case res := <-s.mailer.Dispatch(ctx, msg):
		if res.Err != nil {
			s.metrics.MailDispatch("error", time.Since(start))
			return email.Receipt{}, res.Err
		}
		s.metrics.MailDispatch("ok", time.Since(start))
		return res.Receipt, nil
	case <-ctx.Done():
		s.metrics.MailDispatch("timeout", time.Since(start))
		return email.Receipt{}, ctx.Err()
	}
}

func (s *UserService) publishCreated(ctx context.Context, user domain.User) {
	evt := events.UserCreated{
		UserID:    user.ID,
		Email:     user.Email,
		UserType:  user.UserType,
		CreatedAt: user.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, events.SubjectUserCreated, evt); err != nil {
		s.logger.Warn("publish user created failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// Login verifica las credenciales y emite un token de acceso.
// Un email desconocido devuelve ErrUserNotFound y una contraseña incorrecta ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, emailAddr, password string) (domain.User, string, error) {
	if s.users == nil || s.hasher == nil || s.tokens == nil {
		return domain.User{}, "", errors.New("user service not configured")
	}

	user, err := s.users.GetOne(ctx, domain.UserFilter{Email: normalizeEmail(emailAddr)})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.Login("not_found")
			return domain.User{}, "", ErrUserNotFound
		}
		return domain.User{}, "", err
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		s.metrics.Login("invalid_credentials")
		return domain.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	s.metrics.Login("success")
	return user, token, nil
}

// List reenvia el filtro al repositorio.
func (s *UserService) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	if s.users == nil {
		return nil, errors.New("user service not configured")
	}
	return s.users.GetAll(ctx, filter)
}

// generateVerificationCode devuelve 20 bytes aleatorios en hexadecimal.
func generateVerificationCode() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
