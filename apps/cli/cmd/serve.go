package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/env"
	"github.com/abdul-hamid-achik/uploadprobe/packages/logging"
	"github.com/abdul-hamid-achik/uploadprobe/packages/mock"
	"github.com/spf13/cobra"
)

var (
	servePortFlag        int
	serveDelayFlag       string
	serveMinFilesFlag    int
	serveMaxFilesFlag    int
	serveMaxFileSizeFlag int64
	serveStorageDirFlag  string
	serveEnvFileFlag     string
	serveVerboseFlag     bool
	serveLogLevelFlag    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a local upload/analyze backend",
	Long: `Start an HTTP server implementing the upload/analyze contract so the
smoke test can run without the real backend.

The server:
- Accepts POST /api/upload with 5 to 20 "images" parts (image/* only, 10 MiB each)
- Answers with the stored files, which POST /api/analyze expects back
- Deletes the stored files once they are analyzed

The port comes from --port, then PORT (a .env file in the current directory
is read if present), then 3001.

Examples:
  uploadprobe serve
  uploadprobe serve --port 4000 --delay 100ms
  uploadprobe serve --min-files 1 --verbose`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().IntVarP(&servePortFlag, "port", "p", mock.DefaultPort, "Port to listen on (env: PORT)")
	serveCmd.Flags().StringVarP(&serveDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	serveCmd.Flags().IntVar(&serveMinFilesFlag, "min-files", mock.DefaultMinFiles, "Fewest images accepted per request")
	serveCmd.Flags().IntVar(&serveMaxFilesFlag, "max-files", mock.DefaultMaxFiles, "Most images accepted per upload")
	serveCmd.Flags().Int64Var(&serveMaxFileSizeFlag, "max-file-size", mock.DefaultMaxFileSize, "Per-file size limit in bytes")
	serveCmd.Flags().StringVar(&serveStorageDirFlag, "storage-dir", "", "Directory for uploaded files (default: a new temp dir)")
	serveCmd.Flags().StringVar(&serveEnvFileFlag, "env-file", ".env", "Path to .env file")
	serveCmd.Flags().BoolVarP(&serveVerboseFlag, "verbose", "v", false, "Log every request")
	serveCmd.Flags().StringVar(&serveLogLevelFlag, "log-level", "info", "Log level: debug, info, warn, error")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(serveEnvFileFlag); err == nil {
		if _, err := env.LoadAndExportDotEnv(serveEnvFileFlag); err != nil {
			return configError(err)
		}
	} else if cmd.Flags().Changed("env-file") {
		return configError(fmt.Errorf("cannot read env file: %w", err))
	}

	port, err := servePort(cmd)
	if err != nil {
		return configError(err)
	}

	var delay time.Duration
	if serveDelayFlag != "0" {
		delay, err = time.ParseDuration(serveDelayFlag)
		if err != nil {
			return configError(fmt.Errorf("invalid delay value %q: %w", serveDelayFlag, err))
		}
	}

	logger, err := logging.New(logging.Options{
		Level:   serveLogLevelFlag,
		Verbose: serveVerboseFlag,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return configError(err)
	}

	server, err := mock.NewServer(
		mock.WithPort(port),
		mock.WithDelay(delay),
		mock.WithMinFiles(serveMinFilesFlag),
		mock.WithMaxFiles(serveMaxFilesFlag),
		mock.WithMaxFileSize(serveMaxFileSizeFlag),
		mock.WithStorageDir(serveStorageDirFlag),
		mock.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://localhost:%d (uploads in %s)\n", port, server.Store().Dir())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.StartWithContext(ctx)
}

func servePort(cmd *cobra.Command) (int, error) {
	if cmd.Flags().Changed("port") {
		return servePortFlag, nil
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		return port, nil
	}
	return servePortFlag, nil
}
