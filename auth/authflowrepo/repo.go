package authflowrepo

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/oauthmodel"
)

// ErrNotFound is returned when an entry is absent. Expired entries may still be
// returned until swept; callers check Expired themselves.
var ErrNotFound = fmt.Errorf("auth flow entry %w", apperrors.ErrNotFound)

// RequestRepo stores pending authorization requests keyed by their id.
type RequestRepo interface {
	Upsert(ctx context.Context, req *oauthmodel.AuthorizationRequest) error
	Get(ctx context.Context, id string) (*oauthmodel.AuthorizationRequest, error)
	// Take removes the request and returns it. Only one caller can take a given id.
	Take(ctx context.Context, id string) (*oauthmodel.AuthorizationRequest, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired evicts entries whose deadline is at or before now and returns how many went.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// CodeRepo stores issued authorization codes. Codes are only ever read through
// Take, so a code can be handed out at most once.
type CodeRepo interface {
	Upsert(ctx context.Context, code *oauthmodel.AuthorizationCode) error
	Take(ctx context.Context, code string) (*oauthmodel.AuthorizationCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
