package main

import (
	"fmt"

	"github.com/sensiblebit/certpack/internal"
	"github.com/spf13/cobra"
)

var (
	multiOutPath string
	multiOutDir  string
	multiLegacy  bool
)

var multiCmd = &cobra.Command{
	Use:   "multi <entries.yaml>",
	Short: "Import several certificate/key pairs into one keystore",
	Long: `Process each entry of a YAML job in order: reorder its chain, export it to
<alias>.p12, and import it into a shared JKS keystore. The keystore is
recreated at the start. If an entry fails, the keystore keeps the aliases
imported before it and the error lists them.`,
	Example: `  certpack multi entries.yaml
  certpack multi entries.yaml -o services.jks --out-dir build/

  # entries.yaml
  keystore: multi-keystore.jks
  entries:
    - alias: file
      cert: nglmks_file.pem
      key: nglmks_file.pkey
    - alias: kafka
      cert: nglmks_kafka.pem
      key: nglmks_kafka.pkey`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: extensionCompletion("yaml", "yml"),
	RunE:              runMulti,
}

func init() {
	multiCmd.Flags().StringVarP(&multiOutPath, "out", "o", "", "Output keystore path (default: keystore from the job, then "+internal.DefaultMultiKeystore+")")
	multiCmd.Flags().StringVar(&multiOutDir, "out-dir", ".", "Directory for per-alias .p12 and reordered PEM files")
	multiCmd.Flags().BoolVar(&multiLegacy, "legacy", false, "Use legacy PKCS#12 encryption for Java 8 and older")

	registerCompletion(multiCmd, completionInput{"out-dir", directoryCompletion})
}

func runMulti(cmd *cobra.Command, args []string) error {
	job, err := internal.LoadEntries(args[0])
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}
	password, err := containerPassword()
	if err != nil {
		return err
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}

	keystorePath := multiOutPath
	if keystorePath == "" {
		keystorePath = job.Keystore
	}
	out, err := p.Multi(cmd.Context(), internal.MultiInput{
		Entries:      job.Entries,
		Password:     password,
		KeystorePath: keystorePath,
		OutDir:       multiOutDir,
		Legacy:       multiLegacy,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Keystore written: %s (%d aliases)\n", out.KeystorePath, len(out.Aliases))
	fmt.Fprintf(cmd.ErrOrStderr(), "Base64-encoded keystore (JKS):\n")
	fmt.Fprintln(cmd.OutOrStdout(), internal.Base64(out.Keystore))
	return nil
}
