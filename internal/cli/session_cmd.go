package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coursewright/coursewright/internal/config"
	"github.com/coursewright/coursewright/internal/session"
	"github.com/coursewright/coursewright/internal/store"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and maintain stored sessions",
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionCleanupCmd())

	return cmd
}

// withManager opens the configured store and runs fn against a manager.
func withManager(fn func(cfg config.Config, mgr *session.Manager) error) error {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return err
	}

	var sessions store.SessionStore
	if cfg.Session.Store == "sqlite" {
		db, err := store.Open(paths.DBFile(cfg), log)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		sessions = store.NewSQLiteStore(db)
	} else {
		sessions = store.NewMemoryStore()
	}

	return fn(cfg, session.NewManager(sessions, managerConfig(cfg), log))
}

func newSessionListCmd() *cobra.Command {
	var (
		userID      int64
		contextType string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(cfg config.Config, mgr *session.Manager) error {
				summaries, err := mgr.UserSessions(cmd.Context(), userID, contextType)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Println("no sessions found")
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SESSION\tTITLE\tSTATE\tPROGRESS\tACTIVE\tUPDATED")
				for _, s := range summaries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%v\t%s\n",
						s.SessionID, s.Title, s.CurrentState, s.Progress,
						s.Active, s.LastUpdated.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owning user id (required)")
	cmd.Flags().StringVar(&contextType, "context-type", "", "filter by context type")
	cmd.MarkFlagRequired("user")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored session snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(cfg config.Config, mgr *session.Manager) error {
				sess, err := mgr.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(sess.ToSnapshot(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			})
		},
	}
}

func newSessionCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions idle past the expiry window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(cfg config.Config, mgr *session.Manager) error {
				n, err := mgr.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("removed %d expired session(s)\n", n)
				return nil
			})
		},
	}
}
