package main

import (
	"fmt"
	"os"

	"github.com/coolbeans/fieldmap/pkg/profile"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage form profiles",
		Long: `Form profiles bundle the keys of a form plugin's notification email with
the indicators used to detect it and the pre-processing it needs.

Built-in profiles are always available. Profiles in the profiles directory
(--profiles-dir, default ~/.fieldmap/profiles) are added to them and may
replace a built-in profile with the same ID.`,
	}

	cmd.AddCommand(profilesListCmd())
	cmd.AddCommand(profilesShowCmd())
	cmd.AddCommand(profilesValidateCmd())

	return cmd
}

func profilesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			reg, err := e.registry()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(w, reg.List())
			case "text":
				printProfiles(w, reg.List())
				return nil
			default:
				return fmt.Errorf("unknown format: %s (use text or json)", format)
			}
		},
	}

	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	return cmd
}

func profilesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <profile-id>",
		Short: "Print a profile as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			reg, err := e.registry()
			if err != nil {
				return err
			}

			p, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("profile %q not found", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", p.Source())
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(p)
		},
	}
}

func profilesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check profile files against the profile schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			invalid := 0

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}

				p, err := profile.Parse(data)
				if err != nil {
					invalid++
					printInvalid(w, path, []string{err.Error()})
					continue
				}

				errs := profile.ValidateSchema(p)
				if len(errs) == 0 {
					printValid(w, path, p)
					continue
				}

				invalid++
				messages := make([]string, 0, len(errs))
				for _, fe := range errs {
					messages = append(messages, fe.Error())
				}
				printInvalid(w, path, messages)
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d profile(s) invalid", invalid, len(args))
			}
			return nil
		},
	}
}
