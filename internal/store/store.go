package store

import (
	"context"

	"github.com/phasebridge/transition-cli/internal/model"
)

// TransitionFilter specifies criteria for listing transitions. Zero-value
// fields are ignored; Limit <= 0 returns all matching rows.
type TransitionFilter struct {
	AwardID    string           `json:"award_id,omitempty"`
	ContractID string           `json:"contract_id,omitempty"`
	Confidence model.Confidence `json:"confidence,omitempty"`
	MinScore   float64          `json:"min_score,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for award/contract feeds and
// detected transitions. Transition rows are immutable: SaveTransitions
// assigns each transition the next Version for its award/contract pair
// (1 for new pairs) and appends a new row, never updating old ones.
// GetTransition with version 0 returns the latest version;
// ListTransitions returns only the latest version of each transition.
type Store interface {
	// Feeds
	SaveAwards(ctx context.Context, awards []*model.Award) (int64, error)
	SaveContracts(ctx context.Context, contracts []*model.Contract) (int64, error)
	SavePatents(ctx context.Context, patents map[string][]model.PatentRef) (int64, error)
	SaveTechLabels(ctx context.Context, awardAreas, contractAreas map[string]string) (int64, error)
	ListAwards(ctx context.Context) ([]*model.Award, error)
	ListContracts(ctx context.Context) ([]*model.Contract, error)
	LoadInputs(ctx context.Context) (*model.SignalInputs, error)

	// Transitions
	SaveTransitions(ctx context.Context, transitions []*model.Transition) (int64, error)
	GetTransition(ctx context.Context, id string, version int) (*model.Transition, error)
	ListTransitions(ctx context.Context, filter TransitionFilter) ([]*model.Transition, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
