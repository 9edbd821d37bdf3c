package main

import (
	"fmt"
	"strconv"

	"github.com/coolbeans/fieldmap/pkg/store"
	"github.com/spf13/cobra"
)

func submissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submissions",
		Aliases: []string{"subs"},
		Short:   "Browse stored submissions",
		Long: `Browse submissions saved with "fieldmap extract --store" or the MCP
fieldmap_extract tool. The database path comes from --db, FIELDMAP_DB or
the config file (default ~/.fieldmap/fieldmap.db).`,
	}

	cmd.AddCommand(submissionsListCmd())
	cmd.AddCommand(submissionsShowCmd())
	cmd.AddCommand(submissionsSearchCmd())
	cmd.AddCommand(submissionsDeleteCmd())
	cmd.AddCommand(submissionsStatsCmd())

	return cmd
}

// withStore runs fn against the resolved submission store.
func withStore(cmd *cobra.Command, fn func(s store.Store) error) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	s, err := e.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid submission id: %s", arg)
	}
	return id, nil
}

func submissionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := store.ListOpts{}
			opts.ProfileID, _ = cmd.Flags().GetString("profile")
			opts.Source, _ = cmd.Flags().GetString("source")
			opts.Limit, _ = cmd.Flags().GetInt("limit")
			opts.Offset, _ = cmd.Flags().GetInt("offset")
			format, _ := cmd.Flags().GetString("format")

			return withStore(cmd, func(s store.Store) error {
				subs, err := s.List(cmd.Context(), opts)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				switch format {
				case "json":
					return writeJSON(w, subs)
				case "text":
					printSubmissions(w, subs)
					return nil
				default:
					return fmt.Errorf("unknown format: %s (use text or json)", format)
				}
			})
		},
	}

	cmd.Flags().StringP("profile", "p", "", "Only submissions of this profile")
	cmd.Flags().String("source", "", "Only submissions from this source")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of submissions")
	cmd.Flags().Int("offset", 0, "Number of submissions to skip")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")

	return cmd
}

func submissionsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored submission and its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			showContent, _ := cmd.Flags().GetBool("content")

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withStore(cmd, func(s store.Store) error {
				sub, err := s.Get(cmd.Context(), id)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				switch format {
				case "json":
					return writeJSON(w, sub)
				case "text":
					printSubmission(w, sub, showContent)
					return nil
				default:
					return fmt.Errorf("unknown format: %s (use text or json)", format)
				}
			})
		},
	}

	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	cmd.Flags().Bool("content", false, "Also print the original email content")

	return cmd
}

func submissionsSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over stored email content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			format, _ := cmd.Flags().GetString("format")

			return withStore(cmd, func(s store.Store) error {
				results, err := s.Search(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				switch format {
				case "json":
					return writeJSON(w, results)
				case "text":
					printSearchResults(w, results)
					return nil
				default:
					return fmt.Errorf("unknown format: %s (use text or json)", format)
				}
			})
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")

	return cmd
}

func submissionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withStore(cmd, func(s store.Store) error {
				if err := s.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s submission %d\n", successStyle.Render("Deleted"), id)
				return nil
			})
		},
	}
}

func submissionsStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show submission store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			return withStore(cmd, func(s store.Store) error {
				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				switch format {
				case "json":
					return writeJSON(w, stats)
				case "text":
					printStats(w, stats)
					return nil
				default:
					return fmt.Errorf("unknown format: %s (use text or json)", format)
				}
			})
		},
	}

	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	return cmd
}
