package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry"

	"github.com/meigma/apkrepack/publish"
)

type pullOptions struct {
	ref       string
	output    string
	plainHTTP bool
	maxSize   int64
}

var pullCmd = &cobra.Command{
	Use:   "pull <registry/repository:tag|@digest>",
	Short: "Fetch a published package and verify it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := commandLogger(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		plainHTTP, _ := cmd.Flags().GetBool("plain-http")
		maxSize, _ := cmd.Flags().GetInt64("max-size")
		return runPull(cmd.Context(), cmd.OutOrStdout(), pullOptions{
			ref:       args[0],
			output:    output,
			plainHTTP: plainHTTP,
			maxSize:   maxSize,
		}, logger)
	},
}

func init() {
	pullCmd.Flags().StringP("output", "o", "", "Path of the package to write")
	pullCmd.Flags().Bool("plain-http", false, "Use HTTP instead of HTTPS")
	pullCmd.Flags().Int64("max-size", publish.DefaultMaxPackageSize, "Largest package accepted, in bytes")
	_ = pullCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(pullCmd)
}

func runPull(ctx context.Context, w io.Writer, opts pullOptions, logger *slog.Logger) error {
	ref, err := registry.ParseReference(opts.ref)
	if err != nil {
		return fmt.Errorf("%w: %v", publish.ErrInvalidReference, err)
	}
	if ref.Reference == "" {
		return fmt.Errorf("%w: %q must include a tag or digest", publish.ErrInvalidReference, opts.ref)
	}

	repo, err := publish.NewRepository(
		ref.Registry+"/"+ref.Repository,
		publish.WithPlainHTTP(opts.plainHTTP),
		publish.WithDockerConfig(),
	)
	if err != nil {
		return err
	}
	return pullFrom(ctx, w, repo, ref.Reference, opts, logger)
}

// pullFrom fetches and verifies the package at ref in target.
func pullFrom(ctx context.Context, w io.Writer, target oras.ReadOnlyTarget, ref string, opts pullOptions, logger *slog.Logger) error {
	pkg, err := publish.Pull(ctx, target, ref,
		publish.WithMaxSize(opts.maxSize),
		publish.WithSignatureVerification(),
		publish.WithPullLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := writeOutput(opts.output, pkg.Data); err != nil {
		return err
	}
	fmt.Fprintf(w, "pulled %s (%d bytes, %d signed entries)\n", pkg.Layer.Digest, len(pkg.Data), len(pkg.Verification.Entries))
	return nil
}
