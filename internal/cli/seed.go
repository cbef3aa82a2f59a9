package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/scoring"
)

var seedDefaults bool

var seedRulesCmd = &cobra.Command{
	Use:   "seed-rules [file]",
	Short: "Create or update scoring rules from YAML",
	Long: `Create or update scoring rules from a YAML file. Rules are matched by
name; an existing rule with the same name is overwritten.

Examples:
  crmctl seed-rules rules.yaml
  crmctl seed-rules --defaults`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeedRules,
}

func init() {
	seedRulesCmd.Flags().BoolVar(&seedDefaults, "defaults", false, "seed the built-in rule set")
}

func loadSeedRules(args []string) ([]models.ScoringRule, error) {
	switch {
	case seedDefaults && len(args) > 0:
		return nil, fmt.Errorf("give either a file or --defaults, not both")
	case seedDefaults:
		return scoring.DefaultRules(), nil
	case len(args) == 0:
		return nil, fmt.Errorf("a rules file or --defaults is required")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	return scoring.LoadRulesYAML(f)
}

func runSeedRules(cmd *cobra.Command, args []string) error {
	rules, err := loadSeedRules(args)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Services.ScoringRules.Seed(context.Background(), rules)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rules: %d created, %d updated\n",
		len(rules), result.Created, result.Updated)
	return nil
}
