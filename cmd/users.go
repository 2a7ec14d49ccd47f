package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tokgrab/internal/export"
	"tokgrab/internal/store"
)

var flagOutput string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect the user registry",
}

var usersCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of registered users",
	Args:  cobra.NoArgs,
	RunE:  usersCountRun,
}

var usersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export registered users as CSV",
	Args:  cobra.NoArgs,
	RunE:  usersExportRun,
}

func init() {
	usersExportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file (default: stdout)")

	usersCmd.AddCommand(usersCountCmd)
	usersCmd.AddCommand(usersExportCmd)
}

func openRegistry(ctx context.Context) (*store.Store, error) {
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, path, cfg.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	return st, nil
}

func usersCountRun(cmd *cobra.Command, args []string) error {
	st, err := openRegistry(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.CountUsers(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}

func usersExportRun(cmd *cobra.Command, args []string) error {
	st, err := openRegistry(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return err
	}

	if flagOutput == "" {
		return export.WriteCSV(cmd.OutOrStdout(), users)
	}

	dir, name := filepath.Split(flagOutput)
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
	}
	path, err := export.WriteFile(dir, name, users)
	if err != nil {
		return fmt.Errorf("exporting users: %w", err)
	}
	logger.Info().Str("path", path).Int("users", len(users)).Msg("users exported")
	return nil
}
