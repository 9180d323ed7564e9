package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/templui/sharebox/internal/metrics"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
)

type Outcome int

const (
	Denied Outcome = iota
	Allowed
	// DecisionError means the decision could not be made. Callers treat it as a denial.
	DecisionError
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case DecisionError:
		return "error"
	default:
		return "denied"
	}
}

// Decision is the result of an access check together with what produced it.
type Decision struct {
	Outcome Outcome
	Reason  string
	Err     error
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}

// AccessService decides whether a user may perform an action on a canonical path.
//
// Grants come from groups that are associated with the path's record and that
// the user belongs to. The parent folder's grants are consulted once; the
// grandparent is never consulted.
type AccessService struct {
	fileRepository repository.FileRepository
	root           string
}

func NewAccessService(fileRepository repository.FileRepository, root string) *AccessService {
	return &AccessService{
		fileRepository: fileRepository,
		root:           root,
	}
}

func (s *AccessService) Decide(ctx context.Context, path, userID string, action model.Permission) Decision {
	d := s.decide(ctx, path, userID, action)

	metrics.AccessDecisions.WithLabelValues(string(action), d.Outcome.String()).Inc()
	if d.Outcome == DecisionError {
		slog.Error("access decision failed",
			"error", d.Err,
			"path", path,
			"user_id", userID,
			"action", action,
		)
	} else {
		slog.Debug("access decision",
			"path", path,
			"user_id", userID,
			"action", action,
			"outcome", d.Outcome,
			"reason", d.Reason,
		)
	}
	return d
}

// CanAccess is Decide collapsed to a boolean. Errors deny.
func (s *AccessService) CanAccess(ctx context.Context, path, userID string, action model.Permission) bool {
	return s.Decide(ctx, path, userID, action).Allowed()
}

// Require returns ErrPermissionDenied unless the action is allowed.
func (s *AccessService) Require(ctx context.Context, path, userID string, action model.Permission) error {
	d := s.Decide(ctx, path, userID, action)
	if d.Allowed() {
		return nil
	}
	return ErrPermissionDenied
}

func (s *AccessService) decide(ctx context.Context, path, userID string, action model.Permission) Decision {
	if path == s.root && action == model.PermissionRead {
		return Decision{Outcome: Allowed, Reason: "root is readable"}
	}

	record, err := s.fileRepository.ByPath(ctx, path)
	if errors.Is(err, repository.ErrFileNotFound) {
		return Decision{Outcome: Denied, Reason: "path is not registered"}
	}
	if err != nil {
		return Decision{Outcome: DecisionError, Err: err}
	}

	if record.OwnerID == userID {
		return Decision{Outcome: Allowed, Reason: "owner"}
	}

	granted, err := s.fileRepository.Grants(ctx, record.ID, userID)
	if err != nil {
		return Decision{Outcome: DecisionError, Err: err}
	}
	if model.AnyIncludes(granted, action) {
		return Decision{Outcome: Allowed, Reason: "group grant"}
	}

	if record.ParentID != nil && *record.ParentID != record.ID {
		inherited, err := s.fileRepository.Grants(ctx, *record.ParentID, userID)
		if err != nil {
			return Decision{Outcome: DecisionError, Err: err}
		}
		if model.AnyIncludes(inherited, action) {
			return Decision{Outcome: Allowed, Reason: "inherited from parent folder"}
		}
	}

	return Decision{Outcome: Denied, Reason: "no matching grant"}
}
