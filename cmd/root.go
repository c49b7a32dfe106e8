// Package cmd defines the quill command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill - AI-assisted chat backend",
	Long: `Quill is the backend for an AI-assisted chat application.

It serves a streaming conversational API that orchestrates a language
model and a set of callable tools (weather lookup, document drafting,
suggestion generation), persisting chats, messages, document versions,
suggestions and votes in PostgreSQL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation starts the server, mirroring `quill serve`.
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
