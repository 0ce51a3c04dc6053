package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/pulse/internal/policy"
	"github.com/lazypower/pulse/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect taxonomy and policy files",
}

var taxonomyValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a taxonomy file (default: the configured or built-in taxonomy)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaxonomyValidate,
}

var policyValidateCmd = &cobra.Command{
	Use:   "policy [file]",
	Short: "Validate a Cedar export policy file (default: the configured or built-in policy)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPolicyValidate,
}

func init() {
	taxonomyCmd.AddCommand(taxonomyValidateCmd)
	taxonomyCmd.AddCommand(policyValidateCmd)
}

func runTaxonomyValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Engine.TaxonomyPath
	if len(args) > 0 {
		path = args[0]
	}

	var tax *taxonomy.Taxonomy
	if path == "" {
		tax = taxonomy.Default()
	} else if tax, err = taxonomy.Load(path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "source:  %s\n", tax.Source())
	fmt.Fprintf(out, "leaves:  %d\n", tax.Len())
	fmt.Fprintf(out, "intents: %d\n", len(tax.Intents()))

	rejected := tax.Rejected()
	for _, err := range rejected {
		fmt.Fprintf(out, "  rejected: %v\n", err)
	}
	if len(rejected) > 0 {
		return fmt.Errorf("%d invalid entries: %w", len(rejected), errors.Join(rejected...))
	}
	return nil
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Engine.PolicyPath
	if len(args) > 0 {
		path = args[0]
	}

	gate, err := policy.NewGate(path, logger)
	if err != nil {
		return err
	}
	defer gate.Stop()

	src := gate.Path()
	if src == "" {
		src = "built-in"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "policy %s ok (version %s)\n", src, gate.Version())
	return nil
}
