package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/reviewbuddy/placewatch"
)

var (
	watchURL        string
	watchStatusAddr string
	watchMCP        bool
	watchJournal    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the page in Chrome and keep the score panel up to date",
	Long: `Open the configured page in Chrome (launched locally or reached through
browser.remote) and watch it until interrupted.

With --status-addr a local HTTP server exposes:
  - /health        - liveness
  - /api/place     - tracked place, score and panel state
  - /api/panel.md  - panel content as markdown
  - /mcp           - MCP tools (with --mcp)

Examples:
  reviewbuddy watch --config reviewbuddy.yaml
  reviewbuddy watch --url https://www.google.com/search?q=cafe+luna
  reviewbuddy watch --url https://... --status-addr 127.0.0.1:8089 --mcp --journal ./journal.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("url") {
			cfg.Page.URL = watchURL
		}
		if flags.Changed("status-addr") {
			cfg.StatusAddr = watchStatusAddr
		}
		if flags.Changed("mcp") {
			cfg.MCP = watchMCP
		}
		if flags.Changed("journal") {
			cfg.Journal = watchJournal
		}

		logger := newLogger(cfg.Debug)
		w, err := placewatch.New(cfg, logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		<-ctx.Done()
		logger.Info("reviewbuddy: shutting down")
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "page to open (overrides page.url)")
	watchCmd.Flags().StringVar(&watchStatusAddr, "status-addr", "", "status server listen address, e.g. 127.0.0.1:8089")
	watchCmd.Flags().BoolVar(&watchMCP, "mcp", false, "mount the MCP endpoint on the status server")
	watchCmd.Flags().StringVar(&watchJournal, "journal", "", "SQLite journal path")
}
