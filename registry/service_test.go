package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeReader struct {
	md    Metadata
	err   error
	delay time.Duration
}

func (f *fakeReader) GetByTokenID(ctx context.Context, tokenID string) (Metadata, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Metadata{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Metadata{}, f.err
	}
	return f.md, nil
}

func TestService_TokenMetadata(t *testing.T) {
	svc := NewService(&fakeReader{md: Metadata{TokenID: "token-42", Name: "Sunset Print"}}, time.Second)

	md, err := svc.TokenMetadata(context.Background(), "token-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Name != "Sunset Print" {
		t.Fatalf("expected metadata name, got %q", md.Name)
	}
}

func TestService_TokenMetadataNotFound(t *testing.T) {
	svc := NewService(&fakeReader{err: ErrNotFound}, time.Second)

	if _, err := svc.TokenMetadata(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_TokenMetadataTimeout(t *testing.T) {
	svc := NewService(&fakeReader{
		md:    Metadata{TokenID: "token-42"},
		delay: 200 * time.Millisecond,
	}, 20*time.Millisecond)

	if _, err := svc.TokenMetadata(context.Background(), "token-42"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on deadline, got %v", err)
	}
}
