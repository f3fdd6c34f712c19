package main

import (
	"fmt"

	"github.com/sensiblebit/certpack/internal"
	"github.com/spf13/cobra"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Display the certificates and keys in a PEM, PKCS#7, PKCS#12, or JKS file",
	Long:  "Show what a produced container holds, in order. PKCS#12 and JKS files are opened with the container password.",
	Example: `  certpack inspect cert_reordered.pem
  certpack inspect mykeystore.jks --password-env STORE_PASS
  certpack inspect mycertificate.p12 --format json`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: extensionCompletion("pem", "p12", "pfx", "jks", "p7b"),
	RunE:              runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text or json")
	registerCompletion(inspectCmd, completionInput{"format", fixedCompletion("text", "json")})
}

func runInspect(cmd *cobra.Command, args []string) error {
	password, _, err := internal.PasswordSource{
		File:   passwordFile,
		EnvVar: passwordEnv,
	}.Resolve()
	if err != nil {
		return fmt.Errorf("loading password: %w", err)
	}

	results, err := internal.InspectFile(args[0], password)
	if err != nil {
		return err
	}

	output, err := internal.FormatInspectResults(results, inspectFormat)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}
