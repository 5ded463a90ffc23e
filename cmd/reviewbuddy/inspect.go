package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/reviewbuddy/placewatch"
)

var (
	inspectScore bool
	inspectJSON  bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file|url>",
	Short: "Extract the place from a saved page or a URL without a browser",
	Long: `Parse a saved HTML page (or the server-rendered markup of a URL) with the
configured selectors and print the panel as it would be rendered.

Examples:
  reviewbuddy inspect place.html
  reviewbuddy inspect place.html --score
  reviewbuddy inspect https://example.com/place --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Debug)

		res, err := placewatch.Inspect(cmd.Context(), cfg, args[0], inspectScore, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if inspectJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		if !res.Found {
			cmd.PrintErrln("no place found:", res.Reason)
		}
		_, err = out.Write([]byte(res.Markdown + "\n"))
		return err
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectScore, "score", false, "query the score service")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the result as JSON")
}
