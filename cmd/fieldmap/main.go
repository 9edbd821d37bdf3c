package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/coolbeans/fieldmap/pkg/config"
	"github.com/coolbeans/fieldmap/pkg/extract"
	"github.com/coolbeans/fieldmap/pkg/profile"
	"github.com/coolbeans/fieldmap/pkg/store"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Persistent flags shared by every command.
var (
	configPath  string
	dbPath      string
	profilesDir string
	logLevel    string
)

func main() {
	if err := config.LoadEnvFiles(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldmap",
		Short: "Form submission email field mapper",
		Long: `Fieldmap extracts labelled fields from form-submission emails.

Given the body of a notification email and the field labels it uses
(its keys), fieldmap returns the text that follows every label:
  - Plain text and HTML bodies
  - Keys that contain other keys ("Name" inside "Zip Name")
  - Form profiles that carry the keys for common plugins
  - Profile detection, a submission store and an MCP server`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.fieldmap/config.yaml)")
	pf.StringVar(&dbPath, "db", "", "Submission database path")
	pf.StringVar(&profilesDir, "profiles-dir", "", "Directory of form profile YAML files")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(profilesCmd())
	rootCmd.AddCommand(submissionsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())

	return rootCmd
}

// env is the resolved runtime shared by a command invocation.
type env struct {
	cfg    config.ResolvedConfig
	logger *slog.Logger
	mapper extract.Config
}

// setup resolves configuration from defaults, the config file, the
// environment and the command's flags, and builds the logger.
func setup(cmd *cobra.Command) (*env, error) {
	opts := config.ResolveOptions{
		ConfigPath:     configPath,
		CLIDBPath:      dbPath,
		CLIProfilesDir: profilesDir,
		CLILogLevel:    logLevel,
	}

	flags := cmd.Flags()
	if flags.Lookup("html") != nil {
		if flags.Changed("html") {
			v, _ := flags.GetBool("html")
			opts.CLINormalizeHTML = strconv.FormatBool(v)
		}
		if flags.Changed("no-html") {
			opts.CLINormalizeHTML = "false"
		}
		if flags.Changed("collapse-whitespace") {
			v, _ := flags.GetBool("collapse-whitespace")
			opts.CLICollapseWhitespace = strconv.FormatBool(v)
		}
		opts.CLIHTMLMode, _ = flags.GetString("html-mode")
	}

	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return nil, err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	mapper, err := cfg.MapperConfig()
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, mapper: mapper}, nil
}

func (e *env) registry() (*profile.DefaultRegistry, error) {
	reg, err := profile.NewDefaultRegistry(e.cfg.ProfilesDir.Value, profile.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	return reg, nil
}

func (e *env) openStore() (store.Store, error) {
	s, err := store.NewStore(store.StoreConfig{DBPath: e.cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening submission store: %w", err)
	}
	return s, nil
}

// addMapperFlags registers the pre-processing flags. Flags given on the
// command line win over both the resolved configuration and profile options.
func addMapperFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("html", false, "Convert HTML to text before extraction")
	cmd.Flags().Bool("no-html", false, "Treat the input as plain text")
	cmd.Flags().String("html-mode", "", "HTML conversion mode (text, markdown, auto)")
	cmd.Flags().Bool("collapse-whitespace", false, "Turn runs of five or more whitespace characters into line breaks")
	cmd.MarkFlagsMutuallyExclusive("html", "no-html")
}

// overrideMapper reapplies explicitly given mapper flags on top of a
// profile's configuration.
func overrideMapper(cmd *cobra.Command, base extract.Config, resolved extract.Config) extract.Config {
	flags := cmd.Flags()
	if flags.Changed("html") || flags.Changed("no-html") {
		base.NormalizeHTML = resolved.NormalizeHTML
	}
	if flags.Changed("html-mode") {
		base.HTMLMode = resolved.HTMLMode
	}
	if flags.Changed("collapse-whitespace") {
		base.CollapseWideWhitespace = resolved.CollapseWideWhitespace
	}
	return base
}

// readInput reads the named file, or stdin when no file or "-" is given.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

// collectKeys gathers keys from --key, --keys-json and --keys-file in that
// order.
func collectKeys(cmd *cobra.Command) ([]string, error) {
	keys, _ := cmd.Flags().GetStringArray("key")

	if raw, _ := cmd.Flags().GetString("keys-json"); strings.TrimSpace(raw) != "" {
		parsed, err := profile.ParseKeyList(raw)
		if err != nil {
			return nil, fmt.Errorf("--keys-json: %w", err)
		}
		keys = append(keys, parsed...)
	}

	if path, _ := cmd.Flags().GetString("keys-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading keys file: %w", err)
		}
		parsed, err := profile.ParseKeyList(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		keys = append(keys, parsed...)
	}

	return keys, nil
}
