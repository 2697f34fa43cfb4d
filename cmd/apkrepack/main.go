// Command apkrepack rebuilds, signs, checks and publishes Android packages.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/apkrepack"
)

var rootCmd = &cobra.Command{
	Use:           "apkrepack",
	Short:         "Rebuild and re-sign Android packages",
	Long:          "Replace files in an APK or build one from a directory, producing an aligned archive signed with a JAR (v1) signature.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("cert", "", "PEM signing certificate")
	rootCmd.PersistentFlags().String("key", "", "PEM private key for --cert")
	rootCmd.PersistentFlags().Bool("require-identity", false, "Fail instead of signing with an ephemeral certificate")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "apkrepack:", err)
		os.Exit(1)
	}
}

// newLogger returns a text logger on w at the named level.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// commandLogger builds the logger from the persistent --log-level flag.
func commandLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return newLogger(cmd.ErrOrStderr(), level)
}

// identityOptions holds the signing flags shared by modify and build.
type identityOptions struct {
	certPath        string
	keyPath         string
	requireIdentity bool
}

func loadIdentityOptions(cmd *cobra.Command) identityOptions {
	certPath, _ := cmd.Flags().GetString("cert")
	keyPath, _ := cmd.Flags().GetString("key")
	requireIdentity, _ := cmd.Flags().GetBool("require-identity")
	return identityOptions{
		certPath:        certPath,
		keyPath:         keyPath,
		requireIdentity: requireIdentity,
	}
}

// repackagerOptions turns the signing flags into facade options.
func (o identityOptions) repackagerOptions() ([]apkrepack.Option, error) {
	var opts []apkrepack.Option
	if o.requireIdentity {
		opts = append(opts, apkrepack.WithRequireIdentity())
	}
	if o.certPath == "" && o.keyPath == "" {
		return opts, nil
	}
	if o.certPath == "" || o.keyPath == "" {
		return nil, fmt.Errorf("--cert and --key must be given together")
	}

	certPEM, err := os.ReadFile(o.certPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(o.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	id, err := apkrepack.LoadIdentity(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return append(opts, apkrepack.WithIdentity(id)), nil
}

// writeOutput writes b to path with regular file permissions.
func writeOutput(path string, b []byte) error {
	if err := os.WriteFile(path, b, 0o644); err != nil { //nolint:gosec // packages are not secret
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
