package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-admin-token [token]",
		Short: "Print the bcrypt hash to use as ADMIN_TOKEN_HASH",
		Long: "Hashes the admin bearer token for POST /api/admin/wins.\n" +
			"The token is read from the argument, or from stdin when no argument is given.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := hashToken(token, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost factor")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readToken(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func hashToken(token string, cost int) (string, error) {
	if len(token) < 16 {
		return "", errors.New("token must be at least 16 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}
