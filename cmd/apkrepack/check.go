package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meigma/apkrepack"
)

var checkCmd = &cobra.Command{
	Use:   "check <apk>",
	Short: "Check that stored entries are 4-byte aligned",
	Long:  "Parse a package's directory and local headers and check that every stored entry that must be memory-mapped starts on a 4-byte boundary.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		return runCheck(cmd.OutOrStdout(), args[0], verbose)
	},
}

func init() {
	checkCmd.Flags().BoolP("verbose", "v", false, "List every entry with its method and data offset")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(w io.Writer, path string, verbose bool) error {
	apk, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read package: %w", err)
	}
	layout, err := apkrepack.Check(apk)
	if err != nil {
		return err
	}

	if verbose {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "OFFSET\tMETHOD\tSIZE\tCOMPRESSED\tPATH")
		for _, rec := range layout.Records {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", rec.DataOffset, rec.Method, rec.UncompressedSize, rec.CompressedSize, rec.Path)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%d entries, alignment ok\n", len(layout.Records))
	return nil
}
