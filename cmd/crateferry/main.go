package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/crateferry/internal/buildinfo"
	"github.com/tsukumogami/crateferry/internal/log"
)

// globalCtx is canceled on SIGINT/SIGTERM; pipeline calls thread it
// through for cooperative cancellation (spec.md §5).
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "crateferry name[@version]...",
	Short: "Install prebuilt executable artifacts for named packages",
	Long: `crateferry resolves each named package to a concrete version, races
several fetch strategies to find a prebuilt archive, verifies and extracts
it, and installs the binaries atomically into your bin directory.

Examples:
  crateferry install fd
  crateferry install fd@^8.0.0 ripgrep@1.2.3
  crateferry install fd --targets x86_64-unknown-linux-musl --only-signed`,
	Args: cobra.ArbitraryArgs,
	RunE: runInstall,
}

func init() {
	registerFlags(rootCmd)
	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// registerFlags binds every flag var in flags.go to rootCmd, grouped per
// spec.md §6.
func registerFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.StringVar(&versionFlag, "version", "", "version requirement (only with exactly one package)")
	f.StringSliceVar(&targetsFlag, "targets", nil, "comma-separated target triples, overriding auto-detection")
	f.StringArrayVar(&binFlag, "bin", nil, "install only this binary (repeatable)")

	f.StringVar(&manifestPathFlag, "manifest-path", "", "read the manifest from a local file instead of the index")
	f.StringVar(&gitFlag, "git", "", "repository URL override for manifest resolution")
	f.StringVar(&indexFlag, "index", "", "package index URL")
	f.StringVar(&registryFlag, "registry", "", "named alternative registry")

	f.StringSliceVar(&strategiesFlag, "strategies", nil, "strategy allowlist: metadata, community-rebuild, source-compile")
	f.StringSliceVar(&disableStrategiesFlag, "disable-strategies", nil, "strategy denylist")

	f.StringVar(&installPathFlag, "install-path", "", "bin directory to install into")
	f.StringVar(&rootFlag, "root", "", "install root directory (overrides INSTALL_ROOT)")
	f.BoolVar(&noSymlinksFlag, "no-symlinks", false, "install binaries directly instead of via versioned symlinks")
	f.BoolVar(&noTrackFlag, "no-track", false, "don't read or write the tracking manifest")
	f.BoolVar(&forceFlag, "force", false, "overwrite an existing install or tracked record")

	f.BoolVar(&onlySignedFlag, "only-signed", false, "reject candidates with no declared signing block")
	f.BoolVar(&skipSignaturesFlag, "skip-signatures", false, "disable signature fetch and verification")
	f.StringVar(&minTLSVersionFlag, "min-tls-version", "", "minimum TLS version: 1.2 or 1.3")
	f.StringVar(&rootCertificatesFlag, "root-certificates", "", "PEM bundle to augment the system trust store")

	f.StringVar(&rateLimitFlag, "rate-limit", "", "n[/m]: n tokens per m milliseconds (default 1/10)")
	f.IntVar(&maxResolutionTimeoutFlag, "maximum-resolution-timeout", 0, "per-resolution deadline in seconds (default 15)")

	f.BoolVar(&dryRunFlag, "dry-run", false, "resolve and stage without installing")
	f.BoolVarP(&noConfirmFlag, "no-confirm", "y", false, "skip the install-plan confirmation prompt")
	f.BoolVar(&continueOnFailureFlag, "continue-on-failure", false, "skip failed packages instead of aborting the run")
	f.StringVar(&logLevelFlag, "log-level", "", "error, warn, info, or debug")
	f.BoolVar(&jsonOutputFlag, "json-output", false, "emit machine-readable JSON instead of human-readable text")
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived %s, canceling operation...\n", sig)
		globalCancel()

		<-sigChan
		fmt.Fprintln(os.Stderr, "Forced exit")
		exitWithCode(ExitCancelled)
	}()

	rootCmd.SetArgs(os.Args[1:])
	err := rootCmd.ExecuteContext(globalCtx)
	if err == nil {
		exitWithCode(ExitSuccess)
	}

	if globalCtx.Err() == context.Canceled {
		exitWithCode(ExitCancelled)
	}
	handleRunError(err)
}

// initLogger configures the global logger from --log-level, falling back
// to CRATEFERRY_LOG_LEVEL then WARN, mirroring the teacher's
// flags-then-env-then-default determineLogLevel shape.
func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

func determineLogLevel() slog.Level {
	level := logLevelFlag
	if level == "" {
		level = os.Getenv("CRATEFERRY_LOG_LEVEL")
	}
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
