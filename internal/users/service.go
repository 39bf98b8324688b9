package users

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/authz"
	"github.com/coursehub/coursehub/internal/shared"
)

// RepositoryPort defines data access methods for account management.
type RepositoryPort interface {
	List(ctx context.Context) ([]auth.Principal, error)
	FindByID(ctx context.Context, id int64) (*auth.Principal, error)
	SetApproved(ctx context.Context, id int64, approved bool) error
}

// Mailer notifies an account that it was activated. Nil disables
// notifications.
type Mailer interface {
	SendApprovalNotice(ctx context.Context, to, name string) error
}

// Service handles admin account management.
type Service struct {
	repo   RepositoryPort
	mailer Mailer
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds Service instance. Mailer and audit may be nil.
func NewService(repo RepositoryPort, mailer Mailer, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, mailer: mailer, audit: audit, logger: logger}
}

// List returns all accounts; admin only.
func (s *Service) List(ctx context.Context, actor *auth.Principal) ([]auth.Principal, error) {
	if d := authz.CanManageUsers(actor); !d.Allowed {
		return nil, d.Err()
	}
	return s.repo.List(ctx)
}

// Approve flips the activation flag on an account; admin only. This is the
// other half of instructor gating: registration leaves instructors disabled
// and this call enables them.
func (s *Service) Approve(ctx context.Context, actor *auth.Principal, id int64) (*auth.Principal, error) {
	if d := authz.CanManageUsers(actor); !d.Allowed {
		return nil, d.Err()
	}
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !target.Approved {
		if err := s.repo.SetApproved(ctx, id, true); err != nil {
			return nil, err
		}
		target.Approved = true

		if s.mailer != nil {
			if err := s.mailer.SendApprovalNotice(ctx, target.Email, target.FullName()); err != nil {
				s.logger.Warn("enqueue approval mail", slog.Any("error", err))
			}
		}
		if s.audit != nil {
			if err := s.audit.Record(ctx, shared.AuditLog{
				ActorID:  actor.ID,
				Action:   "user.approve",
				Entity:   "user",
				EntityID: strconv.FormatInt(id, 10),
			}); err != nil {
				s.logger.Warn("audit approve", slog.Any("error", err))
			}
		}
	}
	return target, nil
}
