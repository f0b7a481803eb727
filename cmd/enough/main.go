// Package main is the CLI entry point for enough.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/enough/internal/config"
	"github.com/eliteGoblin/enough/internal/domain"
	"github.com/eliteGoblin/enough/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "enough",
	Short: "Block distracting websites for a while",
	Long: `enough blocks the websites of a profile through the hosts file and
lifts the block automatically when the profile's duration is over.

There is no unblock command. The block ends when its time is up.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample profiles file",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Start a block (requires sudo)",
	Long: `Blocks the websites of a profile until its duration is over.
Without -p the default profile of the config file is used. -d overrides
the profile's duration, e.g. "25m" or "1h 30m".`,
	Args: cobra.NoArgs,
	RunE: runBlock,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active block",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the profiles of the config file",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past blocks",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var completionsCmd = &cobra.Command{
	Use:       "completions <shell>",
	Short:     "Generate shell completions",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE:      runCompletions,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden unblock command - run by the scheduled unit when the block expires
var unblockCmd = &cobra.Command{
	Use:    domain.UnblockCommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runUnblock,
}

var (
	initOutput     string
	configPath     string
	profileName    string
	durationFlag   string
	unblockFix     bool
	statusJSONFlag bool
	statusLineFlag bool
	statusVerbose  bool
	historyLimit   int
	jsonOutput     bool
)

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "", "Where to write the sample (default ~/.config/enough/enough.yaml)")

	blockCmd.Flags().StringVarP(&configPath, "config", "c", "", "Profiles file to use")
	blockCmd.Flags().StringVarP(&profileName, "profile", "p", "", "Profile to block")
	blockCmd.Flags().StringVarP(&durationFlag, "duration", "d", "", "Override the profile's duration")

	profilesCmd.Flags().StringVarP(&configPath, "config", "c", "", "Profiles file to use")

	statusCmd.Flags().BoolVar(&statusJSONFlag, "json", false, "Print the active block as JSON")
	statusCmd.Flags().BoolVar(&statusLineFlag, "line", false, "Print one line for status bars")
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "Also list blocked websites and the scheduled unit")
	statusCmd.MarkFlagsMutuallyExclusive("json", "line")
	statusCmd.MarkFlagsMutuallyExclusive("line", "verbose")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")

	unblockCmd.Flags().BoolVar(&unblockFix, "fix", false, "Lift the block")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(completionsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(unblockCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// requireSudo gates commands that touch the hosts file and system units.
func requireSudo() error {
	if !infra.HasRootPrivileges() {
		return errors.New("this command must be run with sudo")
	}
	return nil
}

// signalContext is cancelled on Ctrl-C so a lock wait can be interrupted.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := initOutput
	if path == "" {
		path = config.DefaultProfilesPath(config.RealHome())
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file `%s` already exists", path)
	}

	data, err := config.GenerateSample(path)
	if err != nil {
		return fmt.Errorf("failed to create config sample file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "YAML Config:\n%s\nWritten to %s\n", data, path)
	return nil
}

func runBlock(cmd *cobra.Command, args []string) error {
	if err := requireSudo(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	profiles, err := config.LoadProfiles(configPath, config.RealHome())
	if err != nil {
		return err
	}
	name, profile, err := profiles.Resolve(profileName)
	if err != nil {
		return err
	}

	duration := profile.Duration
	if durationFlag != "" {
		d, err := config.ParseDuration(durationFlag)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidProfile, err)
		}
		duration = d
	}

	logger := createLogger(cfg.LogLevel)
	a, err := newApp(cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.manager.StartBlock(ctx, name, profile, duration); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Blocked %d websites for %s (profile: %s)\n",
		len(profile.Websites), config.FormatDuration(duration), name)
	return nil
}

func runUnblock(cmd *cobra.Command, args []string) error {
	if err := requireSudo(); err != nil {
		return err
	}
	if !unblockFix {
		fmt.Fprintln(cmd.ErrOrStderr(), "This command is for internal use only, do NOT run it manually")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := createUnblockLogger(cfg)
	a, err := newApp(cfg, logger, true)
	if err != nil {
		logger.Error("failed to initialise", zap.Error(err))
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("scheduled unblock triggered")
	if err := a.manager.UnblockAll(ctx); err != nil {
		if errors.Is(err, domain.ErrNotBlocked) {
			logger.Info("no active block, cleaned up leftovers")
			fmt.Fprintln(cmd.ErrOrStderr(), "No active block was running")
			return nil
		}
		logger.Error("unblock failed", zap.Error(err))
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "All items unblocked")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, createLogger(cfg.LogLevel), false)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.manager.GetStatus()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	now := time.Now()
	switch {
	case statusJSONFlag:
		return writeStatusJSON(out, status)
	case statusLineFlag:
		_, err := io.WriteString(out, statusLine(status, now))
		return err
	default:
		writeStatus(out, status, now, statusVerbose)
		return nil
	}
}

func runProfiles(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles(configPath, config.RealHome())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), profiles.String())
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", historyLimit)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	h, err := infra.OpenHistory(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer h.Close()

	entries, err := h.Recent(historyLimit)
	if err != nil {
		return err
	}
	return writeHistory(cmd.OutOrStdout(), entries)
}

func runCompletions(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return rootCmd.GenBashCompletionV2(out, true)
	case "zsh":
		return rootCmd.GenZshCompletion(out)
	case "fish":
		return rootCmd.GenFishCompletion(out, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(out)
	default:
		return fmt.Errorf("unsupported shell %q", args[0])
	}
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("enough %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
