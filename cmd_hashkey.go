package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"opsboard/internal/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Print the bcrypt hash of an API key for server.public_key or server.service_key",
	Long: `Reads the key from the argument, or from the first line of stdin when no
argument is given, and prints a bcrypt hash that can be stored in the
config file in place of the plaintext key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading key from stdin: %w", err)
			}
			key = strings.TrimSpace(line)
		}
		h, err := auth.HashKey(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
