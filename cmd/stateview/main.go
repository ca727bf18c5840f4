package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/greg-hellings/stateview/pkg/config"
	"github.com/greg-hellings/stateview/pkg/nifi"
	"github.com/greg-hellings/stateview/pkg/report"
	consolefmt "github.com/greg-hellings/stateview/pkg/report/format"
	"github.com/greg-hellings/stateview/pkg/revision"
	"github.com/greg-hellings/stateview/pkg/statetable"
	"github.com/greg-hellings/stateview/pkg/tui"
	"github.com/greg-hellings/stateview/pkg/viewer"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

// Global (root-level) flag variables
var (
	flagVerbose  bool
	flagDebug    bool
	flagConfig   string
	flagEnvFile  string
	flagInstance string
	flagURL      string
	flagToken    string
	flagInsecure bool
	flagType     string
	flagTimeout  time.Duration
	flagClientID string
)

// show command flags
type showFlags struct {
	outputFormat  string
	outputFile    string
	noColor       bool
	keyColWidth   int
	valueColWidth int
	filter        string
	sortColumn    string
	descending    bool
	jsonIndent    bool
}

var showOpts showFlags

// clear command flags
type clearFlags struct {
	force bool
}

var clearOpts clearFlags

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		// If Execute() returns an error, logging may or may not be initialized yet.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stateview",
		Short: "Inspect and clear NiFi component state",
		Long: strings.TrimSpace(`
stateview - NiFi component state viewer

Shows the key/value state that processors, controller services and reporting
tasks keep, locally on each node and cluster-wide, with filtering, sorting and
an optional clear action.

A component can be given as a full resource URI, as a name declared in the
configuration file, or as an id together with --url.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			if flagEnvFile != "" {
				return config.LoadEnvFile(flagEnvFile)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (info) logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging (overrides --verbose)")
	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Configuration file declaring instances and components (.yaml or .toml)")
	cmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load environment variables from a dotenv file")
	cmd.PersistentFlags().StringVarP(&flagInstance, "instance", "i", "", "Configured instance to look components up in")
	cmd.PersistentFlags().StringVar(&flagURL, "url", os.Getenv("NIFI_URL"), "NiFi REST API base URL, e.g. https://nifi:8443/nifi-api (env NIFI_URL)")
	cmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token (env NIFI_TOKEN)")
	cmd.PersistentFlags().BoolVar(&flagInsecure, "insecure", false, "Skip TLS certificate verification")
	cmd.PersistentFlags().StringVarP(&flagType, "type", "t", "processor", "Component type when addressing by id: processor|controller-service|reporting-task")
	cmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "Timeout for each request round-trip")
	cmd.PersistentFlags().StringVar(&flagClientID, "client-id", "", "Client id sent with the revision (default: random per run)")
	cmd.Version = version

	// Add subcommands
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newViewCmd())
	cmd.AddCommand(newComponentsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// newVersionCmd prints version info (simple helper).
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stateview version: %s\n", version)
		},
	}
}

// newShowCmd creates the 'show' subcommand.
func newShowCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "show <component>",
		Short: "Print the state of a component",
		Long: strings.TrimSpace(`
Print the local and cluster state of a component as a table. Entries can be
filtered with a case-insensitive regular expression that is matched against
key, value and scope.

Formats:
  console (default) - adaptive terminal table
  json              - machine-readable JSON

Examples:
  stateview show https://nifi:8443/nifi-api/processors/0189a3c4-...
  stateview show -c nifi.yaml ListS3 --filter 'listing\.' --sort value --desc
  stateview show --url http://localhost:8080/nifi-api 0189a3c4-... --format json
`),
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}

	c.Flags().StringVarP(&showOpts.outputFormat, "format", "f", "console", "Output format: console|json")
	c.Flags().StringVarP(&showOpts.outputFile, "out", "o", "", "Write output to file instead of stdout")
	c.Flags().BoolVar(&showOpts.noColor, "no-color", false, "Disable ANSI colors (console format)")
	c.Flags().IntVar(&showOpts.keyColWidth, "key-col-width", 0, "Max width of the key column (console format; 0=auto)")
	c.Flags().IntVar(&showOpts.valueColWidth, "value-col-width", 0, "Max width of the value column (console format; 0=auto)")
	c.Flags().StringVar(&showOpts.filter, "filter", "", "Only show entries whose key, value or scope match this regular expression")
	c.Flags().StringVar(&showOpts.sortColumn, "sort", statetable.ColumnKey, "Sort column: key|value|scope")
	c.Flags().BoolVar(&showOpts.descending, "desc", false, "Sort descending")
	c.Flags().BoolVar(&showOpts.jsonIndent, "json-indent", false, "Pretty-print JSON output")

	return c
}

// newClearCmd creates the 'clear' subcommand.
func newClearCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "clear <component>",
		Short: "Clear the state of a stopped component",
		Long: strings.TrimSpace(`
Clear all local and cluster state of a component. The component must not be
running (processors) or enabled (controller services); use --force to send
the request anyway and let the server decide.`),
		Args: cobra.ExactArgs(1),
		RunE: runClear,
	}
	c.Flags().BoolVar(&clearOpts.force, "force", false, "Send the clear request even if the component appears to be running")
	return c
}

// newViewCmd creates the interactive 'view' subcommand.
func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <component>",
		Short: "Browse a component's state interactively",
		Long: strings.TrimSpace(`
Open an interactive dialog showing a component's state. Press / to filter,
s and r to change the sort, c to clear the state, y to copy the selected
value and q to close.`),
		Args: cobra.ExactArgs(1),
		RunE: runView,
	}
}

// newComponentsCmd lists components declared in the configuration.
func newComponentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List components declared in the configuration file",
		Args:  cobra.NoArgs,
		RunE:  runComponents,
	}
}

func initLogging() {
	var level slog.Level
	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging initialized", "level", level.String())
}

// target is a resolved component together with a client for its instance.
type target struct {
	component nifi.Component
	client    *nifi.Client
	canClear  bool
}

// resolveTarget turns the positional argument into a component reference.
func resolveTarget(ctx context.Context, arg string) (*target, error) {
	var (
		component nifi.Component
		clientCfg nifi.Config
		named     bool
	)

	switch {
	case strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"):
		uri := strings.TrimRight(arg, "/")
		component = nifi.Component{URI: uri, Name: uri}
		clientCfg.BaseURL = baseURLFromURI(uri)

	case flagConfig != "":
		cfg, err := config.LoadFromFile(flagConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		comp, err := cfg.FindComponent(flagInstance, arg)
		if err != nil {
			return nil, err
		}
		component = comp.Component()
		clientCfg = comp.ClientConfig()
		named = true

	case flagURL != "":
		typ, err := nifi.ParseComponentType(flagType)
		if err != nil {
			return nil, err
		}
		component = nifi.Component{URI: nifi.ComponentURI(flagURL, typ, arg), Name: arg}

	default:
		return nil, errors.New("component must be a URI, or --config or --url must be given")
	}

	// Flags override configuration
	if flagURL != "" {
		clientCfg.BaseURL = flagURL
	}
	if flagToken != "" {
		clientCfg.Token = flagToken
	} else if clientCfg.Token == "" {
		clientCfg.Token = os.Getenv("NIFI_TOKEN")
	}
	if flagInsecure {
		clientCfg.Insecure = true
	}

	client, err := nifi.NewClient(clientCfg)
	if err != nil {
		return nil, err
	}

	t := &target{component: component, client: client, canClear: true}

	info, err := client.DescribeComponent(ctx, component.URI)
	if err != nil {
		slog.Warn("Could not determine component run state; the server will decide whether state can be cleared",
			"uri", component.URI, "error", err)
		return t, nil
	}
	if !named && info.Name != "" {
		t.component.Name = info.Name
	}
	t.canClear = info.CanClear()
	slog.Info("Resolved component", "name", t.component.Name, "uri", component.URI, "state", info.State)

	return t, nil
}

// baseURLFromURI extracts the REST API root from a component URI.
func baseURLFromURI(uri string) string {
	const apiRoot = "/nifi-api"
	if i := strings.Index(uri, apiRoot); i >= 0 {
		return uri[:i+len(apiRoot)]
	}
	return ""
}

func newRevisionStore() *revision.Store {
	if flagClientID != "" {
		return revision.NewStoreWithClientID(flagClientID)
	}
	return revision.NewStore()
}

// writerDialogs prints informational dialogs to the command output.
type writerDialogs struct {
	w io.Writer
}

func (d writerDialogs) ShowOkDialog(content string) {
	fmt.Fprintln(d.w, content)
}

// openViewer initializes the dialog for t and opens it with fresh state.
func openViewer(ctx context.Context, t *target, out io.Writer) (*viewer.Viewer, error) {
	v, err := viewer.New(ctx, viewer.Options{
		Service:   t.client,
		Revisions: newRevisionStore(),
		Errors: viewer.ErrorHandlerFunc(func(err error) {
			slog.Debug("Request failed", "error", err)
		}),
		Cluster: clusterQuery(t.client),
		Dialogs: writerDialogs{w: out},
	})
	if err != nil {
		return nil, err
	}

	if err := v.ShowState(ctx, t.component, t.canClear); err != nil {
		return nil, err
	}
	return v, nil
}

// clusterQuery returns nil when no API root is known, which hides the scope column.
func clusterQuery(c *nifi.Client) viewer.ClusterQuery {
	if c.BaseURL() == "" {
		return nil
	}
	return c
}

// runShow executes the core logic for show.
func runShow(cmd *cobra.Command, args []string) error {
	start := time.Now()

	switch showOpts.sortColumn {
	case statetable.ColumnKey, statetable.ColumnValue, statetable.ColumnScope:
	default:
		return fmt.Errorf("unsupported sort column: %s (supported: key, value, scope)", showOpts.sortColumn)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	t, err := resolveTarget(ctx, args[0])
	if err != nil {
		return err
	}

	v, err := openViewer(ctx, t, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer v.Close()

	if showOpts.filter != "" {
		v.FocusFilter()
		v.SetFilterText(showOpts.filter)
	}
	v.SortBy(showOpts.sortColumn, !showOpts.descending)

	rpt := report.FromViewer(v)

	var outWriter ioWriteCloser = stdOutWriteCloser{w: cmd.OutOrStdout()}
	if showOpts.outputFile != "" {
		if err := os.MkdirAll(filepath.Dir(showOpts.outputFile), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(showOpts.outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		outWriter = f
	}
	defer outWriter.Close()

	switch strings.ToLower(showOpts.outputFormat) {
	case "console":
		if err := renderConsole(rpt, outWriter); err != nil {
			return fmt.Errorf("failed to render console output: %w", err)
		}
	case "json":
		if err := renderJSON(rpt, outWriter); err != nil {
			return fmt.Errorf("failed to render JSON output: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format: %s", showOpts.outputFormat)
	}

	slog.Info("Component state shown",
		"component", rpt.Name,
		"displayed", rpt.Displayed,
		"total", rpt.Total,
		"duration", time.Since(start).String())

	return nil
}

// renderConsole renders the report using the console formatter.
func renderConsole(rpt *report.Report, w ioWriter) error {
	formatter := consolefmt.NewConsoleFormatter()
	formatter.EnableColors = !showOpts.noColor
	if showOpts.keyColWidth > 0 {
		formatter.MaxKeyColWidth = showOpts.keyColWidth
	}
	if showOpts.valueColWidth > 0 {
		formatter.MaxValueColWidth = showOpts.valueColWidth
	}
	return formatter.Render(rpt, w)
}

// jsonOutput is the structured JSON shape we emit.
type jsonOutput struct {
	Version string `json:"cliVersion"`
	*report.Report
}

// renderJSON marshals the report to JSON with additional metadata.
func renderJSON(rpt *report.Report, w ioWriter) error {
	payload := jsonOutput{Version: version, Report: rpt}

	var data []byte
	var err error
	if showOpts.jsonIndent {
		data, err = json.MarshalIndent(payload, "", "  ")
	} else {
		data, err = json.Marshal(payload)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
	return nil
}

// runClear clears the state of a component.
func runClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	t, err := resolveTarget(ctx, args[0])
	if err != nil {
		return err
	}
	if clearOpts.force {
		t.canClear = true
	}

	out := cmd.OutOrStdout()
	v, err := openViewer(ctx, t, out)
	if err != nil {
		return err
	}
	defer v.Close()

	if disabled, title := v.ClearDisabled(); disabled {
		return fmt.Errorf("cannot clear %s: %s", t.component.Name, title)
	}

	total := v.Table().Total()
	if err := v.Clear(ctx); err != nil {
		return err
	}
	if total > 0 {
		fmt.Fprintf(out, "Cleared %d state entries of %s\n", total, t.component.Name)
	}
	return nil
}

// runView opens the interactive dialog.
func runView(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	resolveCtx, cancel := context.WithTimeout(ctx, flagTimeout)
	t, err := resolveTarget(resolveCtx, args[0])
	if err != nil {
		cancel()
		return err
	}

	notices := tui.NewNotices()
	v, err := viewer.New(resolveCtx, viewer.Options{
		Service:   t.client,
		Revisions: newRevisionStore(),
		Errors:    notices,
		Cluster:   clusterQuery(t.client),
		Dialogs:   notices,
	})
	cancel()
	if err != nil {
		return err
	}

	m := tui.New(ctx, v, notices, t.component, t.canClear).WithTimeout(flagTimeout)
	return tui.Run(ctx, m)
}

// runComponents prints the configured components.
func runComponents(cmd *cobra.Command, args []string) error {
	if flagConfig == "" {
		return errors.New("--config is required")
	}
	cfg, err := config.LoadFromFile(flagConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Instance", "Name", "Type", "URI"})
	for _, comp := range cfg.GetAllComponents() {
		if flagInstance != "" && comp.Instance != flagInstance {
			continue
		}
		tw.AppendRow(table.Row{comp.Instance, comp.Config.Name, comp.Config.Type, comp.URI()})
	}
	tw.Render()
	return nil
}

/* ---------- Minimal ioWriter / ioWriteCloser helpers ---------- */

type ioWriter interface {
	Write(p []byte) (n int, err error)
}

type ioWriteCloser interface {
	ioWriter
	Close() error
}

type stdOutWriteCloser struct {
	w ioWriter
}

func (s stdOutWriteCloser) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s stdOutWriteCloser) Close() error {
	// stdout should not be closed
	return nil
}
