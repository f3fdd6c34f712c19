package main

import (
	"fmt"

	"github.com/sensiblebit/certpack/internal"
	"github.com/spf13/cobra"
)

var encodeSidecar bool

var encodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Print a file as single-line base64",
	Example: `  certpack encode mykeystore.jks
  certpack encode mykeystore.jks --sidecar`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().BoolVar(&encodeSidecar, "sidecar", false, "Also write the encoding to <file>.b64")
}

func runEncode(cmd *cobra.Command, args []string) error {
	encoded, sidecar, err := internal.Encode(args[0], encodeSidecar)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), encoded)
	if sidecar != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Base64 output saved to: %s\n", sidecar)
	}
	return nil
}
