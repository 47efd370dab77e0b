// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// set at build time
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "engine",
		Short:   "Affirmation audio engine",
		Long:    "Records, post-processes and loops spoken affirmations behind a local HTTP control surface.",
		Version: version,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			return app.serve(cmd.Context())
		},
	}

	var asJSON bool
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every stored recording asset and report the broken ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()
			return app.validate(cmd.Context(), cmd.OutOrStdout(), asJSON)
		},
	}
	validateCmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	rootCmd.AddCommand(serveCmd, validateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
