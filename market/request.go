/*
request.go - Emergency token request workflow

PURPOSE:
  Students who run out of tokens before the weekly reset can ask staff for
  more. A request is pending until a staff member approves or rejects it;
  approval credits the token ledger.

RULES:
  - Tokens requested must be within [MinRequestTokens, MaxRequestTokens].
  - At most one pending request per student (enforced again by the store,
    so two concurrent submits cannot both slip through).
  - approved and rejected are terminal.

DECISION ORDERING:
  Decide flips the request status with a guarded pending->outcome write
  BEFORE crediting. Two staff members deciding the same request race on
  that flip and only the winner credits, so a request can never pay out
  twice. A credit failure after the flip is logged and surfaced; that
  window mirrors the compensation gap documented in order.go.

SEE ALSO:
  - tokens.go: Credit on approval
  - store.go: DecideRequest guard, CreateRequest pending uniqueness
*/
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// TOKEN REQUEST SERVICE
// =============================================================================

type TokenRequestService struct {
	requests RequestStore
	users    UserStore
	tokens   *TokenLedger
	notify   *Dispatcher
	log      *zap.Logger
}

func NewTokenRequestService(requests RequestStore, users UserStore, tokens *TokenLedger, notify *Dispatcher, log *zap.Logger) *TokenRequestService {
	return &TokenRequestService{requests: requests, users: users, tokens: tokens, notify: notify, log: log}
}

// Submit files a new token request and notifies staff. Fails with
// ErrInvalidRange for out-of-bounds amounts and ErrDuplicatePending if the
// student already has an undecided request.
func (s *TokenRequestService) Submit(ctx context.Context, studentID UserID, reason string, tokens int) (*TokenRequest, error) {
	if tokens < MinRequestTokens || tokens > MaxRequestTokens {
		return nil, fmt.Errorf("requested %d tokens, allowed %d-%d: %w",
			tokens, MinRequestTokens, MaxRequestTokens, ErrInvalidRange)
	}

	student, err := s.users.GetUser(ctx, studentID)
	if err != nil {
		return nil, err
	}

	pending, err := s.requests.HasPendingRequest(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicatePending
	}

	req := &TokenRequest{
		ID:        RequestID(uuid.NewString()),
		StudentID: studentID,
		Reason:    reason,
		Tokens:    tokens,
		Status:    RequestPending,
		CreatedAt: time.Now().UTC(),
		Version:   1,
	}
	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("New token request from %s for %d tokens.", student.Email, tokens)
	if err := s.notify.FanOutStaff(ctx, msg, NotifyToken, string(req.ID), EventKey("request", string(req.ID), "submitted")); err != nil {
		s.log.Warn("token request fan-out failed", zap.String("request", string(req.ID)), zap.Error(err))
	}

	s.log.Info("token request submitted",
		zap.String("request", string(req.ID)),
		zap.String("student", string(studentID)),
		zap.Int("tokens", tokens))
	return req, nil
}

// Decide approves or rejects a pending request. Staff only. On approval the
// requested tokens are credited to the requester. Either outcome notifies
// the requester exactly once.
func (s *TokenRequestService) Decide(ctx context.Context, id RequestID, outcome RequestStatus, actor Actor) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	if outcome != RequestApproved && outcome != RequestRejected {
		return fmt.Errorf("outcome %q: %w", outcome, ErrInvalidRange)
	}

	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != RequestPending {
		return ErrAlreadyDecided
	}

	err = s.requests.DecideRequest(ctx, id, outcome)
	if errors.Is(err, ErrVersionConflict) {
		// Another decision landed first.
		return ErrAlreadyDecided
	}
	if err != nil {
		return err
	}

	var msg string
	if outcome == RequestApproved {
		if _, err := s.tokens.Credit(ctx, req.StudentID, req.Tokens); err != nil {
			s.log.Error("credit failed after approval",
				zap.String("request", string(id)), zap.Error(err))
			return err
		}
		msg = fmt.Sprintf("Your request for %d additional tokens has been approved!", req.Tokens)
	} else {
		msg = fmt.Sprintf("Your request for %d additional tokens has been rejected.", req.Tokens)
	}

	if err := s.notify.Emit(ctx, req.StudentID, msg, NotifyToken, string(id), EventKey("request", string(id), "decided")); err != nil {
		s.log.Warn("decision notification failed", zap.String("request", string(id)), zap.Error(err))
	}

	s.log.Info("token request decided",
		zap.String("request", string(id)),
		zap.String("outcome", string(outcome)),
		zap.String("decided_by", string(actor.ID)))
	return nil
}

// Get returns one request. The requester or staff may read it.
func (s *TokenRequestService) Get(ctx context.Context, id RequestID, actor Actor) (*TokenRequest, error) {
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != req.StudentID && !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return req, nil
}

// ListForStudent returns the student's requests, newest first.
func (s *TokenRequestService) ListForStudent(ctx context.Context, studentID UserID) ([]TokenRequest, error) {
	return s.requests.ListRequestsByStudent(ctx, studentID)
}

// ListAll returns every request, newest first. Staff view.
func (s *TokenRequestService) ListAll(ctx context.Context) ([]TokenRequest, error) {
	return s.requests.ListRequests(ctx)
}
