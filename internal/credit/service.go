package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("credit request not found")

	// ErrInvalidTransition is returned when a request is approved or
	// rejected after it has already been processed.
	ErrInvalidTransition = errors.New("credit request already processed")

	ErrAmountNotPositive = errors.New("credit amount must be positive")
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=credit
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// Transition moves the request from one status to another. It must be
	// conditional on the current status and report false when the request
	// was not in the expected state, so double processing never succeeds.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, reason string) (bool, error)

	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]*Request, error)
}

// Service owns the credit-request lifecycle up to APPROVED. The final
// APPROVED -> APPLIED transition belongs to the mutation engine, which
// performs it atomically with the balance credit.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateRequest(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal) (*Request, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	req := &Request{
		ID:       uuid.New(),
		VendorID: vendorID,
		Amount:   amount,
		Status:   StatusPending,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("creating credit request: %w", err)
	}

	return req, nil
}

func (s *Service) Approve(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Transition(ctx, id, StatusPending, StatusApproved, "")
	if err != nil {
		return fmt.Errorf("approving credit request: %w", err)
	}

	if !ok {
		return ErrInvalidTransition
	}

	return nil
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) error {
	ok, err := s.repo.Transition(ctx, id, StatusPending, StatusRejected, reason)
	if err != nil {
		return fmt.Errorf("rejecting credit request: %w", err)
	}

	if !ok {
		return ErrInvalidTransition
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]*Request, error) {
	return s.repo.ListByVendor(ctx, vendorID)
}
