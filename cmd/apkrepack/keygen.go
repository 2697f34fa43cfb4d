package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/apkrepack"
	"github.com/meigma/apkrepack/signing"
)

type keygenOptions struct {
	certOut    string
	keyOut     string
	commonName string
	ecdsa      bool
	years      int
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a persistent signing identity",
	Long:  "Generate a private key and self-signed certificate for --cert and --key. Keep the pair: devices reject upgrades signed with a different certificate.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runKeygen(cmd.OutOrStdout(), loadKeygenOptions(cmd))
	},
}

func init() {
	keygenCmd.Flags().String("cert-out", "signing.crt", "Path of the PEM certificate to write")
	keygenCmd.Flags().String("key-out", "signing.key", "Path of the PEM private key to write")
	keygenCmd.Flags().String("cn", "apkrepack", "Certificate common name")
	keygenCmd.Flags().Bool("ecdsa", false, "Generate an ECDSA P-256 key instead of RSA-2048")
	keygenCmd.Flags().Int("years", 25, "Certificate validity in years")

	rootCmd.AddCommand(keygenCmd)
}

func loadKeygenOptions(cmd *cobra.Command) keygenOptions {
	certOut, _ := cmd.Flags().GetString("cert-out")
	keyOut, _ := cmd.Flags().GetString("key-out")
	commonName, _ := cmd.Flags().GetString("cn")
	useECDSA, _ := cmd.Flags().GetBool("ecdsa")
	years, _ := cmd.Flags().GetInt("years")

	return keygenOptions{
		certOut:    certOut,
		keyOut:     keyOut,
		commonName: commonName,
		ecdsa:      useECDSA,
		years:      years,
	}
}

func runKeygen(w io.Writer, opts keygenOptions) error {
	if opts.years <= 0 {
		return fmt.Errorf("--years must be positive, got %d", opts.years)
	}
	keyType := signing.KeyRSA
	if opts.ecdsa {
		keyType = signing.KeyECDSA
	}

	id, err := apkrepack.GenerateIdentity(
		signing.WithKeyType(keyType),
		signing.WithCommonName(opts.commonName),
		signing.WithValidity(time.Duration(opts.years)*365*24*time.Hour),
	)
	if err != nil {
		return err
	}
	certPEM, keyPEM, err := id.EncodePEM()
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.keyOut, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(opts.certOut, certPEM, 0o644); err != nil { //nolint:gosec // certificates are public
		return fmt.Errorf("write certificate: %w", err)
	}
	fmt.Fprintf(w, "wrote %s and %s (%s, serial %s)\n", opts.certOut, opts.keyOut, keyType, id.Certificate.SerialNumber.Text(16))
	return nil
}
