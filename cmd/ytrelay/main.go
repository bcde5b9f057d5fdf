// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ytrelay/internal/config"
)

// Version is set via ldflags at build time.
var Version = "dev"

type rootOptions struct {
	debug      bool
	logFile    string
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "ytrelay",
		Short:         "Relay yt-dlp downloads through a Telegram bot",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file")
	flags.StringVar(&opts.configPath, "config", "config.json", "path to the JSON config file")

	root.AddCommand(newConsoleCommand(opts), newConfigCommand())
	return root
}

func newConsoleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console [-]",
		Short: "Run bot commands from a local prompt, or from stdin with \"-\"",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if args[0] != "-" {
					return fmt.Errorf("unexpected argument %q", args[0])
				}
				return runBatchMode(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runConsole(cmd.Context(), opts)
		},
	}
}

func newConfigCommand() *cobra.Command {
	var example bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the config file JSON schema",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if example {
				fmt.Fprintln(cmd.OutOrStdout(), config.ExampleConfigJSON())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.SchemaJSON())
		},
	}
	cmd.Flags().BoolVar(&example, "example", false, "print an example config instead")
	return cmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
