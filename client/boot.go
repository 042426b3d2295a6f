package client

import (
	"context"
	"strconv"

	"github.com/tabletap/tabletap/models"
)

// BootInput is everything a page load can carry that might identify a
// table or restaurant.
type BootInput struct {
	VerifyToken     string // explicit token in the URL (deep link / scan redirect)
	Slug            string // public restaurant slug path
	RestaurantQuery string // ?restaurant= query parameter
}

// BootResult says which source won and what it produced. Exactly one of
// Session or PendingToken is set: a winning verify-token source hands
// the token to the verifier rather than minting a session itself.
type BootResult struct {
	Source       string
	Session      *models.TableSession
	PendingToken string
}

// SlugResolver resolves a public slug to a restaurant; nil means
// unknown slug.
type SlugResolver interface {
	ResolveRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error)
}

type bootSource struct {
	name    string
	resolve func(ctx context.Context, in BootInput) (*BootResult, error)
}

// Boot picks the session source for this page load. Sources are tried
// in a fixed order and the first applicable one wins; everything after
// it is ignored for this boot cycle. The order is a contract: a stale
// staff session must never shadow a fresh guest scan token.
func Boot(ctx context.Context, in BootInput, sessions *SessionManager, slugs SlugResolver) (*BootResult, error) {
	sources := []bootSource{
		{
			name: "verify-token",
			resolve: func(ctx context.Context, in BootInput) (*BootResult, error) {
				if in.VerifyToken == "" {
					return nil, nil
				}
				return &BootResult{Source: "verify-token", PendingToken: in.VerifyToken}, nil
			},
		},
		{
			name: "stored-guest-session",
			resolve: func(ctx context.Context, in BootInput) (*BootResult, error) {
				session, err := sessions.Restore(ctx)
				if err != nil || session == nil {
					return nil, err
				}
				return &BootResult{Source: "stored-guest-session", Session: session}, nil
			},
		},
		{
			name: "stored-staff-session",
			resolve: func(ctx context.Context, in BootInput) (*BootResult, error) {
				session, err := sessions.StoredStaffSession()
				if err != nil || session == nil {
					return nil, err
				}
				return &BootResult{Source: "stored-staff-session", Session: session}, nil
			},
		},
		{
			name: "slug",
			resolve: func(ctx context.Context, in BootInput) (*BootResult, error) {
				if in.Slug == "" {
					return nil, nil
				}
				restaurant, err := slugs.ResolveRestaurantBySlug(ctx, in.Slug)
				if err != nil || restaurant == nil {
					return nil, err
				}
				session, err := sessions.CreateWalkIn(ctx, restaurant.ID, "")
				if err != nil {
					return nil, err
				}
				return &BootResult{Source: "slug", Session: session}, nil
			},
		},
		{
			name: "restaurant-query",
			resolve: func(ctx context.Context, in BootInput) (*BootResult, error) {
				if in.RestaurantQuery == "" {
					return nil, nil
				}
				id, err := strconv.ParseUint(in.RestaurantQuery, 10, 32)
				if err != nil {
					return nil, nil
				}
				session, err := sessions.CreateWalkIn(ctx, uint(id), "")
				if err != nil {
					return nil, err
				}
				return &BootResult{Source: "restaurant-query", Session: session}, nil
			},
		},
	}

	for _, src := range sources {
		result, err := src.resolve(ctx, in)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}
