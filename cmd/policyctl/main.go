// cmd/policyctl/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/config"
	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/policy"
	"github.com/javajoker/crm-governance/internal/scoring"
	"github.com/javajoker/crm-governance/internal/utils"
)

var (
	scorePolicyPath string
	scoreLeadPath   string

	tokenUser   string
	tokenName   string
	tokenTenant string
	tokenRoles  []string
	tokenTTL    int
)

var rootCmd = &cobra.Command{
	Use:           "policyctl",
	Short:         "Operator tooling for governance policies",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var validateCmd = &cobra.Command{
	Use:   "validate <file.yaml>",
	Short: "Validate a policy seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := policy.LoadFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a lead JSON file under a policy file",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := policy.DefaultDocument()
		if scorePolicyPath != "" {
			loaded, err := policy.LoadFile(scorePolicyPath)
			if err != nil {
				return err
			}
			doc = *loaded
		}

		data, err := os.ReadFile(scoreLeadPath)
		if err != nil {
			return fmt.Errorf("failed to read lead: %w", err)
		}
		var lead models.Lead
		if err := json.Unmarshal(data, &lead); err != nil {
			return fmt.Errorf("failed to parse lead: %w", err)
		}

		result, err := scoring.ComputeScores(scoring.InputFromLead(&lead), doc.Qualification)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			scoring.Result
			Evaluation scoring.Evaluation `json:"evaluation"`
		}{result, scoring.EvaluateThreshold(result.QualificationScore, doc.Qualification.Thresholds)})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development JWT with the configured secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		utils.SetJWTSecret(cfg.JWT.SecretKey)

		userID := uuid.New()
		if tokenUser != "" {
			if userID, err = uuid.Parse(tokenUser); err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}
		}
		tenant := tokenTenant
		if tenant == "" {
			tenant = cfg.Policy.DefaultTenant
		}

		token, err := utils.GenerateJWT(userID, tokenName, tenant, tokenRoles, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scorePolicyPath, "policy", "", "policy seed file (defaults to the built-in policy)")
	scoreCmd.Flags().StringVar(&scoreLeadPath, "lead", "", "lead JSON file")
	_ = scoreCmd.MarkFlagRequired("lead")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (random when empty)")
	tokenCmd.Flags().StringVar(&tokenName, "username", "operator", "username claim")
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "tenant id (defaults to DEFAULT_TENANT)")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "role claim, repeatable")
	tokenCmd.Flags().IntVar(&tokenTTL, "ttl", 24, "token lifetime in hours")

	rootCmd.AddCommand(validateCmd, scoreCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if appErr, ok := apperrors.As(err); ok {
			if problems, ok := appErr.Details["problems"].([]string); ok {
				for _, p := range problems {
					fmt.Fprintln(os.Stderr, "  -", p)
				}
			}
		}
		os.Exit(1)
	}
}
