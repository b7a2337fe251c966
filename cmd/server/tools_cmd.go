package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samibismar/calmclinic.health-sub001/internal/auth"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"github.com/samibismar/calmclinic.health-sub001/internal/prompt"
	"github.com/samibismar/calmclinic.health-sub001/internal/router"
	"github.com/spf13/cobra"
)

func parseTenantID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tenant id %q", arg)
	}
	return id, nil
}

func newPromptCmd() *cobra.Command {
	var (
		providerID int
		base       string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "prompt <tenant-id>",
		Short: "Print the assembled system prompt for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenantID(args[0])
			if err != nil {
				return err
			}

			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			assembled, err := a.assembler.Assemble(cmd.Context(), tenantID, prompt.Options{
				BaseOverride: base,
				ProviderID:   providerID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(assembled)
			}
			_, err = fmt.Fprintln(out, assembled.FullPrompt)
			return err
		},
	}
	cmd.Flags().IntVar(&providerID, "provider", 0, "include context for this provider id")
	cmd.Flags().StringVar(&base, "base", "", "base prompt override")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the prompt with its components as JSON")
	return cmd
}

func newAskCmd() *cobra.Command {
	var (
		debug    bool
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "ask <tenant-id> <question...>",
		Short: "Route a single question and print the result",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenantID(args[0])
			if err != nil {
				return err
			}
			question := strings.TrimSpace(strings.Join(args[1:], " "))
			if question == "" {
				return errors.New("question is required")
			}

			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			assembled, err := a.assembler.Assemble(cmd.Context(), tenantID, prompt.Options{})
			if err != nil {
				return err
			}

			messages := []models.ChatMessage{{Role: "user", Content: question}}
			result := a.router.Route(cmd.Context(), router.Query{
				TenantID:     tenantID,
				Text:         question,
				SearchText:   a.analyzer.BuildContextualQuery(question, messages),
				Debug:        debug,
				MaxWebPages:  maxPages,
				SystemPrompt: assembled.FullPrompt,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "force the live-fetch branch")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "override the tenant's page limit")
	return cmd
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <api-key>",
		Short: "Issue a tenant token for an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.store.GetTenantByAPIKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(tenant.ID, a.cfg.JWTSecret, a.cfg.TokenTTL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}
