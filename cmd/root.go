// Package cmd implements the folio CLI: the HTTP API server and the
// offline embedding job behind the portfolio website.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Folio - portfolio website backend",
	Long: `Folio is the backend behind a personal portfolio website.

It serves a retrieval augmented chat endpoint grounded in the site's
markdown content, plus a listing of the documents the chatbot can
draw on. The embed subcommand precomputes the embedding corpus the
chat endpoint retrieves from.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
