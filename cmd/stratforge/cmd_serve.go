package main

import (
	"github.com/spf13/cobra"

	"stratforge/internal"
	"stratforge/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run status API",
	Long: "Serves a read-only HTTP API over persisted run summaries: status,\n" +
		"warnings and an HTML run report. Pipeline execution stays in the CLI.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	runs, cfg, cleanup, err := openRunRepository(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	appServer := ui.NewApp(runs, internal.DefaultLogger)
	return appServer.Start(ui.Config{Port: cfg.Server.Port})
}
