package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/coursehub/internal/shared"
)

// Mailer enqueues transactional mail. Implemented by jobs.Mailer; nil
// disables notifications.
type Mailer interface {
	SendWelcome(ctx context.Context, to, name string, pendingApproval bool) error
}

// SignInMetrics counts sign-in attempts by outcome. Implemented by
// observability.Metrics.
type SignInMetrics interface {
	CountSignIn(outcome string)
}

// Service wraps sign-in and registration business rules.
type Service struct {
	repo     Repository
	codec    *TokenCodec
	throttle *Throttle
	mailer   Mailer
	audit    *shared.AuditLogger
	logger   *slog.Logger
	metrics  SignInMetrics
}

// NewService constructs a new Service. Throttle, mailer and audit may be nil.
func NewService(repo Repository, codec *TokenCodec, throttle *Throttle, mailer Mailer, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, codec: codec, throttle: throttle, mailer: mailer, audit: audit, logger: logger}
}

// SetMetrics attaches an optional sign-in counter.
func (s *Service) SetMetrics(m SignInMetrics) { s.metrics = m }

func (s *Service) countSignIn(outcome string) {
	if s.metrics != nil {
		s.metrics.CountSignIn(outcome)
	}
}

// SignIn validates credentials and issues a bearer token. The enablement
// check runs after the password check so a disabled account with correct
// credentials fails distinctly from a bad password.
func (s *Service) SignIn(ctx context.Context, login, password, ip string) (*Principal, string, error) {
	if err := s.throttle.Allow(ctx, login, ip); err != nil {
		s.countSignIn("throttled")
		return nil, "", err
	}

	principal, err := s.repo.FindByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Is(err, shared.ErrUnknownPrincipal) {
			s.throttle.RecordFailure(ctx, login, ip)
			s.countSignIn("denied")
			return nil, "", shared.ErrUnknownPrincipal
		}
		return nil, "", fmt.Errorf("auth: resolve principal: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		s.throttle.RecordFailure(ctx, login, ip)
		s.countSignIn("denied")
		return nil, "", shared.ErrBadCredentials
	}

	if !principal.Enabled() {
		s.countSignIn("denied")
		return nil, "", shared.ErrDisabledAccount
	}

	token, err := s.codec.Issue(principal)
	if err != nil {
		return nil, "", err
	}
	s.throttle.Reset(ctx, login, ip)
	s.countSignIn("ok")
	return principal, token, nil
}

// RegisterInput carries validated registration fields.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

// Register creates a new principal. Instructors start unapproved and cannot
// sign in until an admin flips the flag; students and admins start approved.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	principal := Principal{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		Approved:     DefaultApproval(in.Role),
	}

	id, err := s.repo.Create(ctx, principal)
	if err != nil {
		return nil, err
	}
	principal.ID = id

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, principal.Email, principal.FullName(), !principal.Approved); err != nil {
			s.logger.Warn("enqueue welcome mail", slog.Any("error", err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  id,
			Action:   "register",
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"role": string(principal.Role), "approved": principal.Approved},
		}); err != nil {
			s.logger.Warn("audit register", slog.Any("error", err))
		}
	}

	return &principal, nil
}
