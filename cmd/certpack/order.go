package main

import (
	"fmt"

	"github.com/sensiblebit/certpack/internal"
	"github.com/spf13/cobra"
)

var (
	orderKeyPath string
	orderOutPath string
	orderP7BPath string
	orderTable   bool
)

var orderCmd = &cobra.Command{
	Use:   "order <bundle.pem>",
	Short: "Reorder a PEM bundle into a leaf-first chain",
	Long: `Find the certificate matching the private key and write the bundle reordered
from leaf to root. Certificates that cannot be linked are kept at the end and
reported as warnings.`,
	Example: `  certpack order bundle.pem --key server.key
  certpack order bundle.pem --key server.key -o chain.pem --p7b chain.p7b --table`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: extensionCompletion("pem", "crt", "cer"),
	RunE:              runOrder,
}

func init() {
	orderCmd.Flags().StringVarP(&orderKeyPath, "key", "k", "", "Private key matching the leaf certificate")
	orderCmd.Flags().StringVarP(&orderOutPath, "out", "o", internal.DefaultReorderedPath, "Output path for the reordered PEM")
	orderCmd.Flags().StringVar(&orderP7BPath, "p7b", "", "Also write the chain as PKCS#7 to this path")
	orderCmd.Flags().BoolVar(&orderTable, "table", false, "Print a table of the ordered chain to stderr")
	_ = orderCmd.MarkFlagRequired("key")

	registerCompletion(orderCmd, completionInput{"key", fileCompletion})
	registerCompletion(orderCmd, completionInput{"out", fileCompletion})
}

func runOrder(cmd *cobra.Command, args []string) error {
	out, err := internal.Order(internal.OrderInput{
		CertPath: args[0],
		KeyPath:  orderKeyPath,
		OutPath:  orderOutPath,
		P7BPath:  orderP7BPath,
	})
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	if orderTable {
		table, err := internal.RenderChainTable(out.Result)
		if err != nil {
			return err
		}
		fmt.Fprint(stderr, table)
	}
	fmt.Fprintf(stderr, "Chain reordered%s: %s\n",
		internal.ChainAnnotation(len(out.Result.Unlinked), len(out.Result.Ambiguities)), out.OutPath)
	if out.P7BPath != "" {
		fmt.Fprintf(stderr, "PKCS#7 written: %s\n", out.P7BPath)
	}
	return nil
}
