package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wms-platform/production-tracking/internal/client"
	"github.com/wms-platform/production-tracking/pkg/logging"
)

// App holds what every subcommand needs
type App struct {
	APIURL  string
	LogFile string

	// interactive is replaced in tests
	interactive func() bool
	logFile     *os.File
}

func (a *App) Client() *client.Client {
	return client.New(a.APIURL)
}

// Logger writes JSON logs to --log-file, or nowhere. Stdout belongs to the board.
func (a *App) Logger() *logging.Logger {
	if a.LogFile == "" {
		return logging.NewNop()
	}
	if a.logFile == nil {
		f, err := os.OpenFile(a.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return logging.NewNop()
		}
		a.logFile = f
	}
	cfg := logging.DefaultConfig("prodtrack-cli")
	cfg.Output = a.logFile
	return logging.New(cfg)
}

func (a *App) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// NewRootCmd creates the top-level "prodtrack" command
func NewRootCmd() *cobra.Command {
	app := &App{interactive: stdoutIsTerminal}
	return newRootCmd(app)
}

func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "prodtrack",
		Short:         "Production tracking boards and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	root.PersistentFlags().StringVar(&app.APIURL, "api", envOr("PRODTRACK_API", "http://localhost:8080"), "Production tracking API base URL")
	root.PersistentFlags().StringVar(&app.LogFile, "log-file", os.Getenv("PRODTRACK_LOG_FILE"), "Append JSON logs to this file")

	root.AddCommand(
		newTVCmd(app),
		newBoardCmd(app),
		newDisplayCmd(app),
		newPipelineCmd(app),
	)

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
