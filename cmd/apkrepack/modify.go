package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/apkrepack"
)

type modifyOptions struct {
	input         string
	output        string
	replacements  []string
	appendMissing bool
	level         int
	workers       int
	identity      identityOptions
}

var modifyCmd = &cobra.Command{
	Use:   "modify <in.apk>",
	Short: "Replace files in a package and re-sign it",
	Long:  "Replace files in an existing package, drop its old signature and write an aligned, freshly signed package.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := commandLogger(cmd)
		if err != nil {
			return err
		}
		opts := loadModifyOptions(cmd)
		opts.input = args[0]
		return runModify(cmd.Context(), opts, logger)
	},
}

func init() {
	modifyCmd.Flags().StringP("output", "o", "", "Path of the signed package to write")
	modifyCmd.Flags().StringArray("replace", nil, "Replacement as archive/path=local/file (repeatable)")
	modifyCmd.Flags().Bool("append-missing", false, "Add replacements whose paths are not in the package")
	modifyCmd.Flags().Int("level", 9, "Deflate level (-2 to 9)")
	modifyCmd.Flags().Int("workers", 0, "Concurrent compression workers (0 = GOMAXPROCS)")
	_ = modifyCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(modifyCmd)
}

func loadModifyOptions(cmd *cobra.Command) modifyOptions {
	output, _ := cmd.Flags().GetString("output")
	replacements, _ := cmd.Flags().GetStringArray("replace")
	appendMissing, _ := cmd.Flags().GetBool("append-missing")
	level, _ := cmd.Flags().GetInt("level")
	workers, _ := cmd.Flags().GetInt("workers")

	return modifyOptions{
		output:        output,
		replacements:  replacements,
		appendMissing: appendMissing,
		level:         level,
		workers:       workers,
		identity:      loadIdentityOptions(cmd),
	}
}

func runModify(ctx context.Context, opts modifyOptions, logger *slog.Logger) error {
	original, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read package: %w", err)
	}

	replacements := make(map[string][]byte, len(opts.replacements))
	for _, spec := range opts.replacements {
		archivePath, localPath, err := parseReplacement(spec)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("read replacement for %s: %w", archivePath, err)
		}
		replacements[archivePath] = b
	}

	repackOpts, err := opts.identity.repackagerOptions()
	if err != nil {
		return err
	}
	repackOpts = append(repackOpts,
		apkrepack.WithLogger(logger),
		apkrepack.WithCompressionLevel(opts.level),
		apkrepack.WithWorkers(opts.workers),
	)
	if opts.appendMissing {
		repackOpts = append(repackOpts, apkrepack.WithAppendMissing())
	}

	r, err := apkrepack.New(repackOpts...)
	if err != nil {
		return err
	}
	signed, err := r.Modify(ctx, original, replacements)
	if err != nil {
		return err
	}
	return writeOutput(opts.output, signed)
}

// parseReplacement splits "archive/path=local/file".
func parseReplacement(spec string) (archivePath, localPath string, err error) {
	archivePath, localPath, ok := strings.Cut(spec, "=")
	if !ok || archivePath == "" || localPath == "" {
		return "", "", fmt.Errorf("invalid --replace %q: want archive/path=local/file", spec)
	}
	return strings.TrimPrefix(archivePath, "/"), localPath, nil
}
