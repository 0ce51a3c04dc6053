package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	profileDebug bool
	tagsLimit    int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the exported profile from the running server",
	RunE:  runProfile,
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show the ranked matching interests from the running server",
	RunE:  runMatch,
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the strongest tags and their decay windows",
	RunE:  runTags,
}

func init() {
	for _, c := range []*cobra.Command{profileCmd, matchCmd, tagsCmd} {
		c.Flags().StringVar(&serverURL, "url", "", "server URL (default: PULSE_URL or the configured listen address)")
	}
	profileCmd.Flags().BoolVar(&profileDebug, "debug", false, "show the raw debug view (local use only)")
	tagsCmd.Flags().IntVarP(&tagsLimit, "limit", "n", 10, "maximum number of tags")
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	c := newClient(cfg)

	if profileDebug {
		dbg, err := c.DebugProfile()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), dbg)
	}
	p, err := c.Profile()
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), p)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newClient(cfg).Match()
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), m)
}

func runTags(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	tags, err := newClient(cfg).Tags(tagsLimit)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tags yet.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tD1\tD7\tD30")
	for _, t := range tags {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\n", t.Path, t.D1, t.D7, t.D30)
	}
	return tw.Flush()
}
