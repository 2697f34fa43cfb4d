package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/apkrepack"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <apk>",
	Short: "Verify a package's JAR signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(w io.Writer, path string) error {
	apk, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read package: %w", err)
	}
	v, err := apkrepack.Verify(apk)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "verified %d entries\n", len(v.Entries))
	fmt.Fprintf(w, "signature file: %s\n", v.SignatureFile)
	fmt.Fprintf(w, "signer: %s\n", v.Signer.Subject)
	fmt.Fprintf(w, "valid: %s to %s\n", v.Signer.NotBefore.UTC().Format("2006-01-02"), v.Signer.NotAfter.UTC().Format("2006-01-02"))
	return nil
}
