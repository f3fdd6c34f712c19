package main

import (
	"fmt"

	"github.com/sensiblebit/certpack/internal"
	"github.com/spf13/cobra"
)

var (
	keystoreCertPath     string
	keystoreKeyPath      string
	keystoreAlias        string
	keystoreSrcAlias     string
	keystoreOutPath      string
	keystoreP12Path      string
	keystoreReordered    string
	keystoreDestPassFile string
	keystoreDestPassEnv  string
	keystoreLegacy       bool
	keystoreNoEncode     bool
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Build a JKS keystore from a certificate bundle and private key",
	Long: `Reorder the bundle, export it with the key to PKCS#12, and import that into a
new JKS keystore. Any existing keystore at the output path is replaced. The
base64 encodings of the keystore and the PKCS#12 are printed to stdout.`,
	Example: `  certpack keystore --cert bundle.pem --key server.key
  CERTPACK_PASSWORD=changeit certpack keystore --cert bundle.pem --key server.key --alias tomcat -o server.jks`,
	Args: cobra.NoArgs,
	RunE: runKeystore,
}

func init() {
	f := keystoreCmd.Flags()
	f.StringVarP(&keystoreCertPath, "cert", "c", "", "PEM certificate bundle")
	f.StringVarP(&keystoreKeyPath, "key", "k", "", "Private key matching the leaf certificate")
	f.StringVarP(&keystoreAlias, "alias", "a", internal.DefaultAlias, "Alias of the key entry in the keystore")
	f.StringVar(&keystoreSrcAlias, "src-alias", "", "Friendly name in the PKCS#12 (default: --alias)")
	f.StringVarP(&keystoreOutPath, "out", "o", internal.DefaultKeystorePath, "Output keystore path")
	f.StringVar(&keystoreP12Path, "p12", internal.DefaultPKCS12Path, "Output PKCS#12 path")
	f.StringVar(&keystoreReordered, "reordered", internal.DefaultReorderedPath, "Output path for the reordered PEM")
	f.StringVar(&keystoreDestPassFile, "dest-password-file", "", "File holding a separate keystore password")
	f.StringVar(&keystoreDestPassEnv, "dest-password-env", "CERTPACK_DEST_PASSWORD", "Environment variable holding a separate keystore password")
	f.BoolVar(&keystoreLegacy, "legacy", false, "Use legacy PKCS#12 encryption for Java 8 and older")
	f.BoolVarP(&keystoreNoEncode, "no-encode", "q", false, "Do not print base64 encodings")
	_ = keystoreCmd.MarkFlagRequired("cert")
	_ = keystoreCmd.MarkFlagRequired("key")

	registerCompletion(keystoreCmd, completionInput{"cert", fileCompletion})
	registerCompletion(keystoreCmd, completionInput{"key", fileCompletion})
	registerCompletion(keystoreCmd, completionInput{"dest-password-file", fileCompletion})
}

func runKeystore(cmd *cobra.Command, _ []string) error {
	password, err := containerPassword()
	if err != nil {
		return err
	}
	destPassword, _, err := internal.PasswordSource{
		File:   keystoreDestPassFile,
		EnvVar: keystoreDestPassEnv,
	}.Resolve()
	if err != nil {
		return err
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}
	out, err := p.Keystore(cmd.Context(), internal.KeystoreInput{
		CertPath:      keystoreCertPath,
		KeyPath:       keystoreKeyPath,
		Password:      password,
		DestPassword:  destPassword,
		SrcAlias:      keystoreSrcAlias,
		DestAlias:     keystoreAlias,
		ReorderedPath: keystoreReordered,
		PKCS12Path:    keystoreP12Path,
		KeystorePath:  keystoreOutPath,
		Legacy:        keystoreLegacy,
	})
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Chain reordered: %s\n", out.ReorderedPath)
	fmt.Fprintf(stderr, "PKCS#12 written: %s\n", out.PKCS12Path)
	fmt.Fprintf(stderr, "Keystore written: %s\n", out.KeystorePath)
	if keystoreNoEncode {
		return nil
	}
	fmt.Fprintf(stderr, "Base64-encoded keystore (JKS):\n")
	fmt.Fprintln(cmd.OutOrStdout(), internal.Base64(out.Keystore))
	fmt.Fprintf(stderr, "Base64-encoded keystore (P12):\n")
	fmt.Fprintln(cmd.OutOrStdout(), internal.Base64(out.PKCS12))
	return nil
}
