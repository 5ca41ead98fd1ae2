package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/config"
	"github.com/abdul-hamid-achik/uploadprobe/packages/core/env"
	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
	"github.com/abdul-hamid-achik/uploadprobe/packages/http"
	"github.com/abdul-hamid-achik/uploadprobe/packages/logging"
	"github.com/abdul-hamid-achik/uploadprobe/packages/notify"
	"github.com/abdul-hamid-achik/uploadprobe/packages/output"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the upload/analyze smoke test",
	Long: `Create placeholder images, upload them and forward the returned
file list to the analyze endpoint.

Examples:
  uploadprobe run
  uploadprobe run --base-url http://staging:3001
  uploadprobe run --count 8 --timeout 30s
  uploadprobe run -o json --output-file result.json
  uploadprobe run --upload-schema upload.schema.json`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

var (
	configFlag       string
	envFileFlag      string
	baseURLFlag      string
	uploadPathFlag   string
	analyzePathFlag  string
	fieldNameFlag    string
	filesFieldFlag   string
	contentTypeFlag  string
	countFlag        int
	prefixFlag       string
	extensionFlag    string
	contentFlag      string
	workDirFlag      string
	timeoutFlag      string
	proxyFlag        string
	insecureFlag     bool
	followFlag       bool
	maxRedirectsFlag int
	headerFlags      []string
	formFlags        []string
	uploadSchemaFlag string
	outputFlag       string
	outputFileFlag   string
	verboseFlag      bool
	noColorFlag      bool
	logLevelFlag     string
	logJSONFlag      bool

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	addRunFlags(runCmd)
}

// addRunFlags registers the run flags on cmd. The root command and run
// share the same variables.
func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	// Config flags
	flags.StringVar(&configFlag, "config", "", "Path to config file (default: search the current directory)")
	flags.StringVar(&envFileFlag, "env-file", "", "Path to .env file exported before reading UPLOADPROBE_* variables")

	// Target flags
	flags.StringVar(&baseURLFlag, "base-url", config.DefaultBaseURL, "Server base URL")
	flags.StringVar(&uploadPathFlag, "upload-path", config.DefaultUploadPath, "Upload endpoint path")
	flags.StringVar(&analyzePathFlag, "analyze-path", config.DefaultAnalyzePath, "Analyze endpoint path")
	flags.StringVar(&fieldNameFlag, "field", config.DefaultFieldName, "Multipart field name for the images")
	flags.StringVar(&filesFieldFlag, "files-field", config.DefaultFilesField, "Upload response key forwarded to analyze")
	flags.StringVar(&contentTypeFlag, "content-type", config.DefaultContentType, "Content type of each uploaded part")

	// Placeholder flags
	flags.IntVarP(&countFlag, "count", "n", config.DefaultCount, "Number of placeholder images")
	flags.StringVar(&prefixFlag, "prefix", config.DefaultPrefix, "Placeholder filename prefix")
	flags.StringVar(&extensionFlag, "extension", config.DefaultExtension, "Placeholder filename extension")
	flags.StringVar(&contentFlag, "content", config.DefaultContent, "Placeholder file content")
	flags.StringVar(&workDirFlag, "work-dir", ".", "Directory the placeholders are written to")

	// Network flags
	flags.StringVar(&timeoutFlag, "timeout", "0", "Per-request timeout (e.g., 30s, 1m); 0 waits indefinitely")
	flags.StringVar(&proxyFlag, "proxy", "", "Proxy URL for HTTP requests")
	flags.BoolVarP(&insecureFlag, "insecure", "k", false, "Disable SSL certificate validation")
	flags.BoolVar(&followFlag, "follow-redirects", true, "Follow HTTP redirects")
	flags.IntVar(&maxRedirectsFlag, "max-redirects", 0, "Maximum redirects to follow (0 = client default of 10)")
	flags.StringArrayVarP(&headerFlags, "header", "H", nil, "Extra request header as 'Name: value' (repeatable)")
	flags.StringArrayVar(&formFlags, "form", nil, "Plain form field sent with the upload as 'name=value' (repeatable)")

	// Checks
	flags.StringVar(&uploadSchemaFlag, "upload-schema", "", "JSON Schema the 200 upload response must satisfy")

	// Output flags
	flags.StringVarP(&outputFlag, "output", "o", "console", "Output format: console, json")
	flags.StringVar(&outputFileFlag, "output-file", "", "Write output to file (default: stdout)")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output and debug logging")
	flags.BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	flags.StringVar(&logLevelFlag, "log-level", "warn", "Log level: debug, info, warn, error")
	flags.BoolVar(&logJSONFlag, "log-json", false, "Write logs as JSON")

	// Notification flags
	flags.StringVar(&notifyFlag, "notify", "", "Notification services, comma-separated: slack, teams")
	flags.StringVar(&notifyOnFlag, "notify-on", "failure", "When to notify: always, failure, success")
	flags.StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	flags.StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	flags.StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRunConfig(cmd)
	if err != nil {
		return configError(err)
	}

	outWriter, closeOut, err := openOutput(cmd)
	if err != nil {
		return configError(err)
	}
	defer closeOut()

	formatter, err := output.New(cfg.Output, outWriter, cfg.GetVerbose(), cfg.GetNoColor())
	if err != nil {
		return configError(err)
	}

	notifier, err := buildNotifier()
	if err != nil {
		return configError(err)
	}
	formatter.FormatHeader(version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := runner.NewRunner(runner.FromConfig(cfg),
		runner.WithLogger(logger),
		runner.WithPhaseHook(formatter.FormatPhase),
	)
	result, err := r.Run(ctx)
	formatter.FormatResult(result)

	if jf, ok := formatter.(*output.JSONFormatter); ok && jf.Err() != nil {
		logger.WithError(jf.Err()).Error("writing output")
	}

	if notifier != nil {
		// the run context may already be cancelled
		if nerr := notifier.Notify(context.WithoutCancel(ctx), notify.Summarize(result)); nerr != nil {
			logger.WithError(nerr).Warn("failed to send notification")
		}
	}

	if err != nil {
		return reported(err)
	}
	return nil
}

// buildNotifier returns nil when --notify is not set
func buildNotifier() (*notify.Manager, error) {
	if notifyFlag == "" {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range strings.Split(notifyFlag, ",") {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			var opts []notify.SlackOption
			if slackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, opts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(teamsWebhookFlag))
		case "":
		default:
			return nil, fmt.Errorf("unknown notification service %q", service)
		}
	}

	return notify.NewManager(notifyOn, notifiers...), nil
}

// openOutput returns --output-file when set, stdout otherwise
func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	if outputFileFlag == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(outputFileFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// loadRunConfig layers defaults, the config file, UPLOADPROBE_* variables
// and explicitly set flags, builds the diagnostics logger from the result,
// then expands {{...}} references.
func loadRunConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	var dotenvVars map[string]string
	if envFileFlag != "" {
		vars, err := env.LoadAndExportDotEnv(envFileFlag)
		if err != nil {
			return nil, nil, err
		}
		dotenvVars = vars
	}

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	prefixed := env.LoadPrefixed(config.EnvPrefix)
	cfg, err := fileConfig.ApplyEnv(prefixed)
	if err != nil {
		return nil, nil, err
	}

	overlay, err := flagOverlay(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg = cfg.Merge(overlay)
	if cmd.Flags().Changed("timeout") {
		// Merge skips zero, but --timeout 0 must clear a configured timeout
		cfg.Timeout = overlay.Timeout
	}
	if cmd.Flags().Changed("max-redirects") {
		cfg.MaxRedirects = overlay.MaxRedirects
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Verbose: cfg.GetVerbose(),
		JSON:    logJSONFlag,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}

	// {{NAME}} sees the --env-file entries and UPLOADPROBE_NAME
	resolver := env.NewResolver()
	resolver.SetVariables(env.MergeVariables(dotenvVars, prefixed))
	resolver.SetWarnFunc(logger.Warnf)
	cfg.BaseURL = resolver.Resolve(cfg.BaseURL)
	cfg.Proxy = resolver.Resolve(cfg.Proxy)
	if len(cfg.Headers) > 0 {
		cfg.Headers = resolver.ResolveAll(cfg.Headers)
	}
	if len(cfg.Form) > 0 {
		cfg.Form = resolver.ResolveAll(cfg.Form)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := http.ValidateURL(http.JoinURL(cfg.BaseURL, cfg.UploadPath)); err != nil {
		return nil, nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return cfg, logger, nil
}

// flagOverlay builds a Config holding only the flags the user set
func flagOverlay(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	overlay := &config.Config{}

	strs := []struct {
		name string
		src  *string
		dst  *string
	}{
		{"base-url", &baseURLFlag, &overlay.BaseURL},
		{"upload-path", &uploadPathFlag, &overlay.UploadPath},
		{"analyze-path", &analyzePathFlag, &overlay.AnalyzePath},
		{"field", &fieldNameFlag, &overlay.FieldName},
		{"files-field", &filesFieldFlag, &overlay.FilesField},
		{"content-type", &contentTypeFlag, &overlay.ContentType},
		{"prefix", &prefixFlag, &overlay.Prefix},
		{"extension", &extensionFlag, &overlay.Extension},
		{"work-dir", &workDirFlag, &overlay.WorkDir},
		{"proxy", &proxyFlag, &overlay.Proxy},
		{"upload-schema", &uploadSchemaFlag, &overlay.UploadSchema},
		{"output", &outputFlag, &overlay.Output},
		{"log-level", &logLevelFlag, &overlay.LogLevel},
	}
	for _, s := range strs {
		if flags.Changed(s.name) {
			*s.dst = *s.src
		}
	}

	if flags.Changed("content") {
		overlay.Content = config.StringPtr(contentFlag)
	}
	if flags.Changed("count") {
		overlay.Count = config.IntPtr(countFlag)
	}
	if flags.Changed("insecure") {
		overlay.ValidateSSL = config.BoolPtr(!insecureFlag)
	}
	if flags.Changed("follow-redirects") {
		overlay.FollowRedirects = config.BoolPtr(followFlag)
	}
	if flags.Changed("verbose") {
		overlay.Verbose = config.BoolPtr(verboseFlag)
	}
	if flags.Changed("no-color") {
		overlay.NoColor = config.BoolPtr(noColorFlag)
	}

	if flags.Changed("timeout") {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		if timeout < 0 {
			return nil, fmt.Errorf("timeout must not be negative, got %s", timeoutFlag)
		}
		overlay.Timeout = int(timeout.Milliseconds())
	}

	if flags.Changed("max-redirects") {
		if maxRedirectsFlag < 0 {
			return nil, fmt.Errorf("max-redirects must not be negative, got %d", maxRedirectsFlag)
		}
		overlay.MaxRedirects = maxRedirectsFlag
	}

	if flags.Changed("header") {
		headers, err := parseHeaders(headerFlags)
		if err != nil {
			return nil, err
		}
		overlay.Headers = headers
	}

	if flags.Changed("form") {
		form, err := parseForm(formFlags)
		if err != nil {
			return nil, err
		}
		overlay.Form = form
	}

	return overlay, nil
}

func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (use 'Name: value')", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func parseForm(values []string) (map[string]string, error) {
	form := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid form field %q (use 'name=value')", v)
		}
		form[name] = value
	}
	return form, nil
}
