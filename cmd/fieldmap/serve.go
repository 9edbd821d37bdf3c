package main

import (
	"fmt"
	"os"

	"github.com/coolbeans/fieldmap/pkg/config"
	fieldmcp "github.com/coolbeans/fieldmap/pkg/mcp"
	"github.com/coolbeans/fieldmap/pkg/profile"
	"github.com/coolbeans/fieldmap/pkg/store"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
fieldmap_extract, fieldmap_preview, fieldmap_detect and fieldmap_profiles
tools and the fieldmap://profiles resource.

Logs go to stderr. With --watch, profile files added to, changed in or
removed from the profiles directory are picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			noStore, _ := cmd.Flags().GetBool("no-store")

			e, err := setup(cmd)
			if err != nil {
				return err
			}

			reg, err := e.registry()
			if err != nil {
				return err
			}

			if watch {
				reg.SetOnChange(func(event string, p *profile.FormProfile) {
					if p == nil {
						e.logger.Info("profile removed", "event", event)
						return
					}
					e.logger.Info("profile reloaded", "event", event, "profile", p.ProfileID, "version", p.Version)
				})
				if err := os.MkdirAll(e.cfg.ProfilesDir.Value, 0755); err != nil {
					return fmt.Errorf("creating profiles directory: %w", err)
				}
				if err := reg.Watch(); err != nil {
					return fmt.Errorf("watching profiles: %w", err)
				}
				defer reg.StopWatch()
			}

			var s store.Store
			if !noStore {
				s, err = e.openStore()
				if err != nil {
					return err
				}
				defer s.Close()
			}

			srv := fieldmcp.NewServer(fieldmcp.ServerConfig{
				Registry: reg,
				Store:    s,
				Mapper:   e.mapper,
				Version:  version,
				Logger:   e.logger,
			})

			e.logger.Info("serving MCP over stdio", "profiles", reg.Count(), "db", e.cfg.DBPath.Value, "store", !noStore)
			return fieldmcp.ServeStdio(srv)
		},
	}

	cmd.Flags().Bool("watch", false, "Reload profiles when files in the profiles directory change")
	cmd.Flags().Bool("no-store", false, "Run without a submission store")

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			e, err := setup(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(w, e.cfg)
			case "text":
				printConfig(w, e.cfg)
				return nil
			default:
				return fmt.Errorf("unknown format: %s (use text or json)", format)
			}
		},
	}

	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	addMapperFlags(cmd)

	return cmd
}

// configRows lists the resolved values in display order.
func configRows(cfg config.ResolvedConfig) []struct {
	name  string
	value config.ResolvedValue
} {
	return []struct {
		name  string
		value config.ResolvedValue
	}{
		{"db_path", cfg.DBPath},
		{"profiles_dir", cfg.ProfilesDir},
		{"log_level", cfg.LogLevel},
		{"normalize_html", cfg.NormalizeHTML},
		{"collapse_whitespace", cfg.CollapseWhitespace},
		{"html_mode", cfg.HTMLMode},
	}
}
