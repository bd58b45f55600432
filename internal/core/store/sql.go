package store

import (
	"context"
	"fmt"

	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/types"
)

// SQLStore implements NodeStore over the condition_nodes table.
type SQLStore struct {
	queries *db.Queries
}

// NewSQLStore creates a store using the named queries.
func NewSQLStore(queries *db.Queries) *SQLStore {
	return &SQLStore{queries: queries}
}

// List returns the rule's records ordered by id.
func (s *SQLStore) List(ctx context.Context, ruleID types.RuleID) ([]types.NodeRecord, error) {
	var records []types.NodeRecord
	if err := s.queries.Select(ctx, &records, "list-condition-nodes", ruleID); err != nil {
		return nil, fmt.Errorf("failed to list nodes for rule %s: %w", ruleID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrTreeNotFound, ruleID)
	}
	return records, nil
}

// Replace deletes and re-inserts the rule's records in one transaction.
func (s *SQLStore) Replace(ctx context.Context, ruleID types.RuleID, records []types.NodeRecord) error {
	tx, err := s.queries.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.queries.Exec(ctx, tx, "delete-condition-nodes", ruleID); err != nil {
		return fmt.Errorf("failed to clear nodes for rule %s: %w", ruleID, err)
	}

	for _, r := range records {
		_, err := s.queries.Exec(ctx, tx, "insert-condition-node",
			ruleID, r.ID, r.ParentID, r.NodeType, r.LogicalOperator, r.OrderNo,
			r.ConditionName, r.ConditionDescription,
			r.LeftKind, r.LeftValue, r.LeftValueType, r.Symbol,
			r.RightKind, r.RightValue, r.RightValueType,
			r.GroupName, r.GroupDescription,
		)
		if err != nil {
			return fmt.Errorf("failed to insert node %d for rule %s: %w", r.ID, ruleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit nodes for rule %s: %w", ruleID, err)
	}
	return nil
}

// Delete removes the rule's records.
func (s *SQLStore) Delete(ctx context.Context, ruleID types.RuleID) error {
	n, err := s.queries.Exec(ctx, s.queries.DB(), "delete-condition-nodes", ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete nodes for rule %s: %w", ruleID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrTreeNotFound, ruleID)
	}
	return nil
}

// RuleIDs lists every rule that has stored records.
func (s *SQLStore) RuleIDs(ctx context.Context) ([]types.RuleID, error) {
	var ids []types.RuleID
	if err := s.queries.Select(ctx, &ids, "list-rule-ids"); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return ids, nil
}
