package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry"

	"github.com/meigma/apkrepack"
	"github.com/meigma/apkrepack/publish"
)

type pushOptions struct {
	input     string
	ref       string
	tags      []string
	plainHTTP bool
}

var pushCmd = &cobra.Command{
	Use:   "push <apk> <registry/repository:tag>",
	Short: "Publish a signed package to an OCI registry",
	Long:  "Verify a package's signature and push it to an OCI registry as a single-layer artifact. Credentials are read from the Docker config.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := commandLogger(cmd)
		if err != nil {
			return err
		}
		tags, _ := cmd.Flags().GetStringArray("tag")
		plainHTTP, _ := cmd.Flags().GetBool("plain-http")
		return runPush(cmd.Context(), cmd.OutOrStdout(), pushOptions{
			input:     args[0],
			ref:       args[1],
			tags:      tags,
			plainHTTP: plainHTTP,
		}, logger)
	},
}

func init() {
	pushCmd.Flags().StringArray("tag", nil, "Additional tag (repeatable)")
	pushCmd.Flags().Bool("plain-http", false, "Use HTTP instead of HTTPS")

	rootCmd.AddCommand(pushCmd)
}

func runPush(ctx context.Context, w io.Writer, opts pushOptions, logger *slog.Logger) error {
	ref, err := registry.ParseReference(opts.ref)
	if err != nil {
		return fmt.Errorf("%w: %v", publish.ErrInvalidReference, err)
	}
	if ref.Reference == "" {
		return fmt.Errorf("%w: %q must include a tag", publish.ErrInvalidReference, opts.ref)
	}

	repo, err := publish.NewRepository(
		ref.Registry+"/"+ref.Repository,
		publish.WithPlainHTTP(opts.plainHTTP),
		publish.WithDockerConfig(),
	)
	if err != nil {
		return err
	}
	return pushTo(ctx, w, repo, ref.Reference, opts, logger)
}

// pushTo verifies the package and pushes it to target under tag.
func pushTo(ctx context.Context, w io.Writer, target oras.Target, tag string, opts pushOptions, logger *slog.Logger) error {
	apk, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read package: %w", err)
	}
	v, err := apkrepack.Verify(apk)
	if err != nil {
		return err
	}

	desc, err := publish.Push(ctx, target, tag, apk,
		publish.WithTags(opts.tags...),
		publish.WithTitle(filepath.Base(opts.input)),
		publish.WithSigner(v.Signer.Subject.String()),
		publish.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "pushed %s@%s\n", opts.ref, desc.Digest)
	return nil
}
