package main

import (
	"fmt"
	"time"

	"github.com/sensiblebit/certpack/internal"
	"github.com/sensiblebit/certpack/internal/packaging"
	"github.com/spf13/cobra"
)

var (
	logLevel     string
	passwordFile string
	passwordEnv  string
	backendFlag  = backendValue{kind: packaging.KindNative}
	toolTimeout  time.Duration
	toolRetries  int
	opensslPath  string
	keytoolPath  string
)

var rootCmd = &cobra.Command{
	Use:   "certpack",
	Short: "Reorder certificate chains and package them for Java",
	Long: `Reorder an unordered PEM certificate bundle into a leaf-first chain using the
private key to find the leaf, then package it as PKCS#12, JKS keystores, or
truststores. Containers are built in-process by default; --backend tools
delegates to openssl and keytool.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		internal.SetupLogger(logLevel)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&passwordFile, "password-file", "", "File whose first non-blank line is the container password")
	pf.StringVar(&passwordEnv, "password-env", internal.DefaultPasswordEnv, "Environment variable holding the container password")
	pf.Var(&backendFlag, "backend", "Packaging backend: native or tools")
	pf.DurationVar(&toolTimeout, "tool-timeout", packaging.DefaultToolTimeout, "Timeout for each openssl/keytool invocation")
	pf.IntVar(&toolRetries, "tool-retries", 0, "Extra attempts for a failed openssl/keytool invocation")
	pf.StringVar(&opensslPath, "openssl", "openssl", "Path to the openssl binary (tools backend)")
	pf.StringVar(&keytoolPath, "keytool", "keytool", "Path to the keytool binary (tools backend)")

	registerCompletion(rootCmd, completionInput{"log-level", fixedCompletion("debug", "info", "warn", "error")})
	registerCompletion(rootCmd, completionInput{"backend", fixedCompletion(backendNames()...)})
	registerCompletion(rootCmd, completionInput{"password-file", fileCompletion})

	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(keystoreCmd)
	rootCmd.AddCommand(multiCmd)
	rootCmd.AddCommand(truststoreCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(inspectCmd)
}

// newPipeline builds a pipeline on the backend selected by the persistent flags.
func newPipeline() (*internal.Pipeline, error) {
	if toolRetries < 0 {
		return nil, fmt.Errorf("--tool-retries must be zero or more (got %d)", toolRetries)
	}
	backend, err := packaging.New(packaging.Options{
		Kind:    backendFlag.kind,
		OpenSSL: opensslPath,
		Keytool: keytoolPath,
		Runner: &packaging.Runner{
			Timeout:    toolTimeout,
			Retries:    toolRetries,
			RetryDelay: time.Second,
		},
	})
	if err != nil {
		return nil, err
	}
	return &internal.Pipeline{Backend: backend}, nil
}

// containerPassword resolves the container password from --password-file,
// the --password-env variable, or a terminal prompt.
func containerPassword() (string, error) {
	return internal.RequirePassword(internal.PasswordSource{
		File:   passwordFile,
		EnvVar: passwordEnv,
		Prompt: "Container password (at least 6 characters): ",
	})
}
