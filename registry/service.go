package registry

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable signals the registry could not answer within the deadline.
var ErrUnavailable = errors.New("registry: unavailable")

// MetadataClient is the contract the dispute core consumes.
type MetadataClient interface {
	TokenMetadata(ctx context.Context, tokenID string) (Metadata, error)
}

// Service exposes business-level registry operations with a bounded lookup
// deadline, mapping expiry to ErrUnavailable.
type Service struct {
	repo    MetadataReader
	timeout time.Duration
}

// NewService builds a Service using the provided repository.
func NewService(repo MetadataReader, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{repo: repo, timeout: timeout}
}

// TokenMetadata returns the stored metadata for a token.
func (s *Service) TokenMetadata(ctx context.Context, tokenID string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	md, err := s.repo.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Metadata{}, ErrUnavailable
		}
		return Metadata{}, err
	}
	return md, nil
}
