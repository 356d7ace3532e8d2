// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// initiativectl is the command-line client for the assistant service.
//
// Examples:
//
//	initiativectl ask "which initiatives are active?"
//	initiativectl ask --stream "summarize the goals for Q3"
//	initiativectl cancel run-7f3a...
//	initiativectl providers
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	sessionID string
	provider  string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "initiativectl",
	Short: "Talk to the initiative assistant from the terminal",
	Long: "initiativectl asks the initiative assistant questions, streams its " +
		"reasoning live, and cancels runs that are no longer needed.",
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		envOr("ASSISTANT_URL", "http://localhost:12310"), "assistant service base URL")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session",
		envOr("ASSISTANT_SESSION", ""), "session id for multi-turn conversations")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "model provider to use")
	rootCmd.PersistentFlags().StringVar(&authToken, "token",
		envOr("ASSISTANT_TOKEN", ""), "bearer token")

	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newCancelCmd())
	rootCmd.AddCommand(newProvidersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
