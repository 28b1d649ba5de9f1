// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rootCmd = &cobra.Command{
		Use:   "insights",
		Short: "A CLI for the Wizel insights service",
		Long: `insights asks natural-language analytics questions about your
connected stores and prints the generated analysis.`,
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask an analytics question",
		Long: `Sends a question to the insights service. Pin the analysis to
specific stores with --store; repeat the flag for several stores.
Exactly one pinned store produces a deep single-source analysis,
anything else a portfolio overview.`,
		Args: cobra.MinimumNArgs(1),
		Run:  runAskCommand,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the service build and model configuration",
		Run:   runStatusCommand,
	}

	// ask flags
	storeIDs  []string
	expertise string
	stream    bool
	showSQL   bool
)

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:12310", "Insights service base URL")
	rootCmd.PersistentFlags().String("token", "", "Bearer token for authentication")

	viper.SetEnvPrefix("INSIGHTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	askCmd.Flags().StringArrayVar(&storeIDs, "store", nil, "Pin the analysis to a store (repeatable)")
	askCmd.Flags().StringVar(&expertise, "expertise", "", "Analyst voice: beginner, intermediate, or expert")
	askCmd.Flags().BoolVar(&stream, "stream", false, "Stream the analysis as it is written")
	askCmd.Flags().BoolVar(&showSQL, "show-sql", false, "Print the generated SQL before the analysis")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statusCmd)
}

func serverURL() string {
	return strings.TrimRight(viper.GetString("server"), "/")
}

func authToken() string {
	return viper.GetString("token")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
