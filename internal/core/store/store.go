package store

/*
 * Persistence for flat condition tree records.
 *
 * A rule's tree is stored as its []types.NodeRecord and always replaced as a
 * whole, so readers never observe a partially written tree. Structural
 * validation belongs to the caller (rules.BuildTree); the store only enforces
 * what the schema enforces.
 */

import (
	"context"

	"github.com/solatis/rulekeeper/internal/types"
)

// NodeStore is the storage contract for condition trees.
type NodeStore interface {
	// List returns the rule's records ordered by id.
	// Returns types.ErrTreeNotFound when the rule has none.
	List(ctx context.Context, ruleID types.RuleID) ([]types.NodeRecord, error)

	// Replace atomically swaps the rule's records. Record RuleIDs are
	// overwritten with ruleID.
	Replace(ctx context.Context, ruleID types.RuleID, records []types.NodeRecord) error

	// Delete removes the rule's records.
	// Returns types.ErrTreeNotFound when the rule has none.
	Delete(ctx context.Context, ruleID types.RuleID) error

	// RuleIDs lists every rule that has a stored tree.
	RuleIDs(ctx context.Context) ([]types.RuleID, error)
}
