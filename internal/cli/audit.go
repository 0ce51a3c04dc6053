package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	logSession string
	logLimit   int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the observation audit log from the running server",
	RunE:  runLog,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <commitment>",
	Short: "Check that an export commitment was issued by the running server",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	for _, c := range []*cobra.Command{logCmd, verifyCmd} {
		c.Flags().StringVar(&serverURL, "url", "", "server URL (default: PULSE_URL or the configured listen address)")
	}
	logCmd.Flags().StringVar(&logSession, "session", "", "only show observations from this session")
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "maximum number of rows")
}

func runLog(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	obs, err := newClient(cfg).Observations(logSession, logLimit)
	if err != nil {
		return err
	}
	if len(obs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No observations logged.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tHOST\tINTENT\tTAGS\tPTA")
	for _, o := range obs {
		at := time.UnixMilli(o.CreatedAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f\n", at, o.SessionID, o.Host, o.IntentLabel, o.Tags, o.PtA)
	}
	return tw.Flush()
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	e, err := newClient(cfg).Export(args[0])
	if err != nil {
		return fmt.Errorf("verify %s: %w", args[0], err)
	}
	return printJSON(cmd.OutOrStdout(), e)
}
