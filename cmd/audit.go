package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cryptodash/internal/config"
	"github.com/shaharia-lab/cryptodash/internal/storage"
)

// NewAuditCmd returns the "audit" subcommand that lists recent logins.
func NewAuditCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		user  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent logins recorded by the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := storage.NewSQLiteDB(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			records, err := storage.NewSQLiteLoginStore(db).ListLogins(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No logins recorded.")
				return nil
			}

			t := newTable("ID", "USER", "ISSUED", "EXPIRES", "REMOTE", "TOKEN ID")
			for _, r := range records {
				t.Row(
					strconv.FormatInt(r.ID, 10),
					r.Username,
					r.IssuedAt.Local().Format(time.DateTime),
					r.ExpiresAt.Local().Format(time.DateTime),
					r.RemoteAddr,
					r.TokenID,
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Only show logins of this user")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")
	return cmd
}
