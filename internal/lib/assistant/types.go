package assistant

import (
	"context"
	"time"
)

// Answer is a short description of a place
type Answer struct {
	Query       string    `json:"query"`
	Summary     string    `json:"summary"`
	Facts       []string  `json:"facts"`
	Language    string    `json:"language"`
	GeneratedAt time.Time `json:"generated_at"`
	Cached      bool      `json:"cached"`
}

// Assistant answers questions about places on the map
type Assistant interface {
	Describe(ctx context.Context, query string) (Answer, error)
	HealthCheck(ctx context.Context) error
}
