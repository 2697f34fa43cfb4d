package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/apkrepack"
)

type buildOptions struct {
	dir      string
	output   string
	level    int
	workers  int
	identity identityOptions
}

var buildCmd = &cobra.Command{
	Use:   "build <dir>",
	Short: "Build a signed package from a directory",
	Long:  "Build an aligned, signed package from every regular file under a directory. Paths are relative to the directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := commandLogger(cmd)
		if err != nil {
			return err
		}
		opts := loadBuildOptions(cmd)
		opts.dir = args[0]
		return runBuild(cmd.Context(), opts, logger)
	},
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "Path of the signed package to write")
	buildCmd.Flags().Int("level", 9, "Deflate level (-2 to 9)")
	buildCmd.Flags().Int("workers", 0, "Concurrent compression workers (0 = GOMAXPROCS)")
	_ = buildCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(buildCmd)
}

func loadBuildOptions(cmd *cobra.Command) buildOptions {
	output, _ := cmd.Flags().GetString("output")
	level, _ := cmd.Flags().GetInt("level")
	workers, _ := cmd.Flags().GetInt("workers")

	return buildOptions{
		output:   output,
		level:    level,
		workers:  workers,
		identity: loadIdentityOptions(cmd),
	}
}

func runBuild(ctx context.Context, opts buildOptions, logger *slog.Logger) error {
	files, err := readTree(os.DirFS(opts.dir))
	if err != nil {
		return err
	}
	logger.Debug("collected files", "dir", opts.dir, "count", len(files))

	repackOpts, err := opts.identity.repackagerOptions()
	if err != nil {
		return err
	}
	repackOpts = append(repackOpts,
		apkrepack.WithLogger(logger),
		apkrepack.WithCompressionLevel(opts.level),
		apkrepack.WithWorkers(opts.workers),
	)

	r, err := apkrepack.New(repackOpts...)
	if err != nil {
		return err
	}
	signed, err := r.Build(ctx, files)
	if err != nil {
		return err
	}
	return writeOutput(opts.output, signed)
}

// readTree reads every regular file in fsys keyed by its slash path.
// Symlinks and other special files are skipped.
func readTree(fsys fs.FS) (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		files[p] = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}
	return files, nil
}
