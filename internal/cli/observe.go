package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/pulse/internal/client"
	"github.com/lazypower/pulse/internal/config"
	"github.com/lazypower/pulse/internal/engine"
	"github.com/lazypower/pulse/internal/stream"
)

var (
	serverURL    string
	observeLocal bool

	replayPersist bool
	replayEach    bool
)

var observeCmd = &cobra.Command{
	Use:   "observe [file]",
	Short: "Submit one observation (JSON) and print the resulting export",
	Long:  "Reads a JSON observation from the file argument or stdin. By default it is sent to the running server; --local processes it in-process.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runObserve,
}

var replayCmd = &cobra.Command{
	Use:   "replay [file.jsonl]",
	Short: "Feed a JSONL observation stream through a local engine",
	Long:  "Replays recorded observations from the file argument or stdin. State is in-memory unless --persist is set.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReplay,
}

func init() {
	observeCmd.Flags().StringVar(&serverURL, "url", "", "server URL (default: PULSE_URL or the configured listen address)")
	observeCmd.Flags().BoolVar(&observeLocal, "local", false, "process in-process instead of sending to the server")

	replayCmd.Flags().BoolVar(&replayPersist, "persist", false, "restore from and save to the database")
	replayCmd.Flags().BoolVar(&replayEach, "each", false, "print every intermediate export as JSONL")
}

// openInput returns the named file, or stdin when no name is given.
func openInput(args []string, stdin io.Reader) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// newClient resolves the server URL: --url, then PULSE_URL, then the
// configured listen address.
func newClient(cfg config.Config) *client.Client {
	url := serverURL
	if url == "" && os.Getenv("PULSE_URL") == "" {
		url = "http://" + cfg.ListenAddr()
	}
	return client.New(url)
}

func runObserve(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	in, err := openInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.Close()

	var obs engine.Observation
	if err := json.NewDecoder(in).Decode(&obs); err != nil {
		return fmt.Errorf("decode observation: %w", err)
	}

	if observeLocal {
		rt, err := openRuntime(cfg, logger, cfg.Engine.Persist)
		if err != nil {
			return err
		}
		defer rt.Close()
		return printJSON(cmd.OutOrStdout(), rt.engine.ProcessObservation(obs))
	}

	profile, err := newClient(cfg).Observe(obs)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), profile)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	in, err := openInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.Close()

	rt, err := openRuntime(cfg, logger, replayPersist)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	st, err := stream.Each(in, func(obs engine.Observation) error {
		p := rt.engine.ProcessObservation(obs)
		if replayEach {
			return enc.Encode(p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("replay complete", "lines", st.Lines, "parsed", st.Parsed, "skipped", st.Skipped)

	if replayEach {
		return nil
	}
	return printJSON(out, rt.engine.ExportProfile())
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
