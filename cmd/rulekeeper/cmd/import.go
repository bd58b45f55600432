package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/rulekeeper/internal/core/treefile"
	"github.com/solatis/rulekeeper/internal/types"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace a rule's condition tree from a YAML tree file",
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print condition trees as YAML",
	Long: `Print a rule's condition tree as a YAML tree file. With --all every
stored tree is printed as one document per rule.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(importCmd, exportCmd)
	importCmd.Flags().String("rule", "", "rule id (defaults to the file's rule, or a new id)")
	importCmd.Flags().String("file", "", "YAML tree file")
	importCmd.MarkFlagRequired("file")
	exportCmd.Flags().String("rule", "", "rule id")
	exportCmd.Flags().Bool("all", false, "export every stored tree")
	exportCmd.MarkFlagsOneRequired("rule", "all")
	exportCmd.MarkFlagsMutuallyExclusive("rule", "all")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("file")

	doc, records, err := treefile.Load(path)
	if err != nil {
		return err
	}

	raw, _ := cmd.Flags().GetString("rule")
	if raw == "" {
		raw = doc.Rule
	}
	ruleID := types.NewRuleID()
	if raw != "" {
		if ruleID, err = types.ParseRuleID(raw); err != nil {
			return fmt.Errorf("invalid rule id %q: %w", raw, err)
		}
	}

	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	service, err := rt.newService(ctx, nil)
	if err != nil {
		return err
	}
	if err := service.SaveTree(ctx, ruleID, records); err != nil {
		return fmt.Errorf("failed to save tree: %w", err)
	}

	rt.logger.Info("Imported condition tree",
		zap.String("rule_id", string(ruleID)),
		zap.String("file", path),
		zap.Int("nodes", len(records)),
	)
	fmt.Fprintln(cmd.OutOrStdout(), ruleID)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	all, _ := cmd.Flags().GetBool("all")

	var ruleIDs []types.RuleID
	if !all {
		raw, _ := cmd.Flags().GetString("rule")
		ruleID, err := types.ParseRuleID(raw)
		if err != nil {
			return fmt.Errorf("invalid rule id %q: %w", raw, err)
		}
		ruleIDs = []types.RuleID{ruleID}
	}

	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	service, err := rt.newService(ctx, nil)
	if err != nil {
		return err
	}
	if all {
		if ruleIDs, err = service.RuleIDs(ctx); err != nil {
			return err
		}
	}
	return writeTrees(ctx, cmd.OutOrStdout(), service, ruleIDs)
}

type recordSource interface {
	Records(ctx context.Context, ruleID types.RuleID) ([]types.NodeRecord, error)
}

// writeTrees writes one YAML document per rule, separated by "---".
func writeTrees(ctx context.Context, w io.Writer, src recordSource, ruleIDs []types.RuleID) error {
	for i, ruleID := range ruleIDs {
		records, err := src.Records(ctx, ruleID)
		if err != nil {
			return fmt.Errorf("rule %s: %w", ruleID, err)
		}
		data, err := treefile.Marshal(ruleID, records)
		if err != nil {
			return fmt.Errorf("rule %s: %w", ruleID, err)
		}
		if i > 0 {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}
