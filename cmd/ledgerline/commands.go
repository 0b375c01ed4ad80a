package main

import (
	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Ledgerline HTTP server",
		Long: `Start the Ledgerline HTTP server.

The server exposes a small JSON API for chatting with the assistant and
reading back session transcripts. The assistant performs invoicing work
through tool calls against the local database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant from the terminal",
		Long: `Chat with the assistant interactively.

Each line is sent as one message. Type /clear to start a fresh session,
/history to replay the transcript, and /quit to exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), resolveConfigPath(configPath), userID, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&userID, "user", "u", "local", "User id to chat as")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage chat sessions",
	}

	var (
		configPath string
		userID     string
	)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the active session transcript for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsShow(cmd.Context(), resolveConfigPath(configPath), userID)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Deactivate the active session and purge its transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsClear(cmd.Context(), resolveConfigPath(configPath), userID)
		},
	}

	for _, c := range []*cobra.Command{showCmd, clearCmd} {
		c.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
		c.Flags().StringVarP(&userID, "user", "u", "", "User id (required)")
		_ = c.MarkFlagRequired("user")
	}

	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}
