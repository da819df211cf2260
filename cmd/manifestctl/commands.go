package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lessonforge/api/internal/auth"
	"github.com/lessonforge/api/internal/config"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/timing"
)

var errInvalid = errors.New("manifest is invalid")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "manifestctl",
		Short:         "Validate and analyze lesson manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newAnalyzeCmd(), newTokenCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var partial bool
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a JSON or YAML manifest",
		Long: `Runs structural and semantic validation and prints the result.
Exits non-zero when the manifest has blocking errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			input, err := readDocument(args[0])
			if err != nil {
				return err
			}

			v := manifest.NewValidator(cfg.Validation)
			var res manifest.Result
			if partial {
				res = v.ValidatePartial(input)
			} else {
				res = v.Validate(input)
			}
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Valid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&partial, "partial", false, "validate an incomplete draft")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var narrationPath string
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Compute the timing record of a manifest",
		Long: `Analyzes the manifest against narration timing read from --narration.
Without --narration the timing is estimated from the voiceover text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			input, err := readDocument(args[0])
			if err != nil {
				return err
			}

			res := manifest.NewValidator(cfg.Validation).Validate(input)
			if !res.Valid {
				for _, msg := range res.Messages() {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
				}
				return errInvalid
			}

			var narration *timing.Narration
			if narrationPath != "" {
				narration, err = readNarration(narrationPath)
				if err != nil {
					return err
				}
			} else {
				narration = timing.EstimateNarration(res.Manifest, cfg.Validation.SpeechWordsPerMin)
			}

			rec, err := timing.NewAnalyzer(cfg.Timing).Analyze(res.Manifest, narration)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringVar(&narrationPath, "narration", "", "narration timing file (JSON or YAML)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		id  auth.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a legacy HMAC token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if id.UserID == "" {
				return errors.New("--user is required")
			}
			if ttl == 0 {
				ttl = time.Duration(cfg.JWT.Expiration) * time.Hour
			}

			token, err := auth.IssueLegacyToken(cfg.JWT.Secret, id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&id.Email, "email", "", "user email")
	cmd.Flags().StringVar(&id.PartnerID, "partner", "", "partner id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_EXPIRATION hours)")
	return cmd
}

// readDocument decodes a JSON or YAML file, chosen by extension, into
// generic values.
func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

func readNarration(path string) (*timing.Narration, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read narration: %w", err)
	}
	var n timing.Narration
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to read narration: %w", err)
	}
	return &n, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
