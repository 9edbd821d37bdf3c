package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/coolbeans/fieldmap/pkg/extract"
	"github.com/coolbeans/fieldmap/pkg/profile"
	"github.com/coolbeans/fieldmap/pkg/store"
	"github.com/spf13/cobra"
)

// job is what a command extracts: the keys, the mapper configuration and
// the profile that supplied them, if any.
type job struct {
	profile *profile.FormProfile
	keys    []string
	config  extract.Config
}

func (j *job) profileID() string {
	if j.profile == nil {
		return ""
	}
	return j.profile.ProfileID
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("key", "k", nil, "Field label to extract (repeatable)")
	cmd.Flags().String("keys-json", "", "Field labels as a JSON array")
	cmd.Flags().String("keys-file", "", "File with one field label per line, or a JSON array")
	cmd.Flags().StringP("profile", "p", "", "Form profile supplying keys and options")
	cmd.Flags().Bool("detect", false, "Use the best matching profile")
	addMapperFlags(cmd)
}

// resolveJob combines explicit keys, a named or detected profile and the
// mapper flags. Explicit keys replace the profile's keys.
func resolveJob(cmd *cobra.Command, e *env, content string) (*job, error) {
	j := &job{config: e.mapper}

	keys, err := collectKeys(cmd)
	if err != nil {
		return nil, err
	}

	profileID, _ := cmd.Flags().GetString("profile")
	detect, _ := cmd.Flags().GetBool("detect")

	if profileID != "" || detect {
		reg, err := e.registry()
		if err != nil {
			return nil, err
		}

		if profileID != "" {
			p, ok := reg.Get(profileID)
			if !ok {
				return nil, fmt.Errorf("profile %q not found", profileID)
			}
			j.profile = p
		} else {
			best := profile.NewDetector(reg).DetectBest(content)
			if best == nil {
				return nil, errors.New("no profile matches the input")
			}
			e.logger.Info("detected profile", "profile", best.ProfileID, "confidence", best.Confidence)
			j.profile = best.Profile
		}

		j.keys = j.profile.Keys
		j.config = overrideMapper(cmd, j.profile.Config(e.mapper), e.mapper)
	}

	if len(keys) > 0 {
		j.keys = keys
	}
	if len(j.keys) == 0 {
		return nil, errors.New("no keys given: use --key, --keys-json, --keys-file, --profile or --detect")
	}
	return j, nil
}

type extractOutput struct {
	ProfileID    string          `json:"profile_id,omitempty"`
	Fields       []extract.Field `json:"fields"`
	Missing      []string        `json:"missing,omitempty"`
	SubmissionID int64           `json:"submission_id,omitempty"`
	Duplicate    bool            `json:"duplicate,omitempty"`
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract field values from a form submission email",
		Long: `Extract the value of every key found in a form submission email.

The email is read from the file argument, or from stdin when the argument
is omitted or "-". Keys come from --key, --keys-json or --keys-file, or
from a form profile.

Example:
  fieldmap extract submission.eml --key "Name" --key "Email"
  fieldmap extract submission.html --profile wpforms-html --format json
  cat submission.txt | fieldmap extract --detect --store --source msg-42`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			save, _ := cmd.Flags().GetBool("store")
			source, _ := cmd.Flags().GetString("source")

			e, err := setup(cmd)
			if err != nil {
				return err
			}

			content, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			j, err := resolveJob(cmd, e, content)
			if err != nil {
				return err
			}

			result, err := extract.NewMapper(j.config, extract.WithLogger(e.logger)).Map(content, j.keys)
			if err != nil {
				return err
			}

			out := extractOutput{
				ProfileID: j.profileID(),
				Fields:    extract.Ordered(result, j.keys),
			}
			for _, key := range j.keys {
				if _, ok := result[key]; !ok {
					out.Missing = append(out.Missing, key)
				}
			}

			if save {
				s, err := e.openStore()
				if err != nil {
					return err
				}
				defer s.Close()

				if source == "" && len(args) > 0 && args[0] != "-" {
					source = args[0]
				}
				id, err := s.Save(cmd.Context(), &store.Submission{
					ProfileID: j.profileID(),
					Source:    source,
					Content:   content,
					Fields:    out.Fields,
				})
				switch {
				case errors.Is(err, store.ErrDuplicate):
					out.Duplicate = true
				case err != nil:
					return err
				}
				out.SubmissionID = id
			}

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(w, out)
			case "text":
				printFields(w, out.ProfileID, out.Fields, out.Missing)
				if save {
					printSaved(w, out.SubmissionID, out.Duplicate)
				}
				return nil
			default:
				return fmt.Errorf("unknown format: %s (use text or json)", format)
			}
		},
	}

	addKeyFlags(cmd)
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	cmd.Flags().Bool("store", false, "Save the submission to the submission store")
	cmd.Flags().String("source", "", "Source recorded with a stored submission (default: the input file)")

	return cmd
}

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Show the normalized text extraction scans",
		Long: `Show the input after pre-processing and line normalization, with every
key starting its own line. Use it to see why a key did or did not match.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}

			content, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			j, err := resolveJob(cmd, e, content)
			if err != nil {
				return err
			}

			text, err := extract.NewMapper(j.config, extract.WithLogger(e.logger)).Preview(content, j.keys)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	addKeyFlags(cmd)
	return cmd
}

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Detect which form profile produced an email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explain, _ := cmd.Flags().GetString("explain")
			format, _ := cmd.Flags().GetString("format")
			minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

			e, err := setup(cmd)
			if err != nil {
				return err
			}

			content, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			reg, err := e.registry()
			if err != nil {
				return err
			}

			detector := profile.NewDetectorWithOptions(reg, profile.DetectorOptions{MinConfidence: minConfidence})
			w := cmd.OutOrStdout()

			if explain != "" {
				fmt.Fprint(w, detector.ExplainMatch(content, explain))
				return nil
			}

			matches := detector.Detect(content)
			switch format {
			case "json":
				type jsonMatch struct {
					ProfileID  string                   `json:"profile_id"`
					Name       string                   `json:"name"`
					Confidence float64                  `json:"confidence"`
					Indicators []profile.IndicatorMatch `json:"indicators"`
				}
				out := make([]jsonMatch, 0, len(matches))
				for _, m := range matches {
					out = append(out, jsonMatch{m.ProfileID, m.Profile.Name, m.Confidence, m.Indicators})
				}
				return writeJSON(w, out)
			case "text":
				printMatches(w, matches)
				return nil
			default:
				return fmt.Errorf("unknown format: %s (use text or json)", format)
			}
		},
	}

	cmd.Flags().String("explain", "", "Explain indicator by indicator how a profile scores")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	cmd.Flags().Float64("min-confidence", 0, "Hide matches at or below this confidence")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}
