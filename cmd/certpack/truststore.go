package main

import (
	"fmt"

	"github.com/sensiblebit/certpack/internal"
	"github.com/spf13/cobra"
)

var (
	truststoreAlias   string
	truststoreOutPath string
)

var truststoreCmd = &cobra.Command{
	Use:   "truststore <cert.pem>",
	Short: "Build a JKS truststore holding one trusted certificate",
	Long: `Create a new JKS truststore with the certificate as a trusted entry and write
its base64 encoding next to it as <out>.b64. Any existing truststore at the
output path is replaced.`,
	Example: `  certpack truststore ca.pem --alias corp-root
  certpack truststore ca.pem --alias corp-root -o client-truststore.jks`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: extensionCompletion("pem", "crt", "cer"),
	RunE:              runTruststore,
}

func init() {
	truststoreCmd.Flags().StringVarP(&truststoreAlias, "alias", "a", "", "Alias of the trusted entry")
	truststoreCmd.Flags().StringVarP(&truststoreOutPath, "out", "o", internal.DefaultTruststorePath, "Output truststore path")
	_ = truststoreCmd.MarkFlagRequired("alias")
}

func runTruststore(cmd *cobra.Command, args []string) error {
	password, err := containerPassword()
	if err != nil {
		return err
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}
	out, err := p.Truststore(cmd.Context(), internal.TruststoreInput{
		CertPath: args[0],
		Alias:    truststoreAlias,
		Password: password,
		OutPath:  truststoreOutPath,
	})
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Truststore created: %s\n", out.Path)
	fmt.Fprintf(stderr, "Base64 output saved to: %s\n", out.SidecarPath)
	return nil
}
