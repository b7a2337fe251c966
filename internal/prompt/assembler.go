package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const minPromptLength = 100

// Source is the read side of the tenant configuration store.
type Source interface {
	GetTenant(ctx context.Context, tenantID int) (*models.Tenant, error)
	GetCurrentPrompt(ctx context.Context, tenantID int) (*models.PromptVersion, error)
	GetProvider(ctx context.Context, tenantID, providerID int) (*models.Provider, error)
}

type Options struct {
	BaseOverride string
	ProviderID   int
}

type Assembler struct {
	src Source
}

func NewAssembler(src Source) *Assembler {
	return &Assembler{src: src}
}

// AssembleSystemPrompt returns the full system prompt for a tenant.
func (a *Assembler) AssembleSystemPrompt(ctx context.Context, tenantID int, baseOverride string) (string, error) {
	assembled, err := a.Assemble(ctx, tenantID, Options{BaseOverride: baseOverride})
	if err != nil {
		return "", err
	}
	return assembled.FullPrompt, nil
}

// Assemble builds every section in order. Missing tenants, prompts and
// providers fall back to defaults; only models.ErrStoreUnavailable is
// returned.
func (a *Assembler) Assemble(ctx context.Context, tenantID int, opts Options) (*models.AssembledSystemPrompt, error) {
	logger := log.With().Int("tenant_id", tenantID).Logger()

	tenant, err := a.src.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			return nil, fmt.Errorf("assemble prompt: %w", err)
		}
		logger.Warn().Err(err).Msg("⚠️ tenant lookup failed, using default prompt")
		tenant = nil
	}

	base, err := a.resolveBase(ctx, tenantID, tenant, opts.BaseOverride)
	if err != nil {
		return nil, err
	}

	personality := PersonalityGuidelines(tenant)
	if opts.ProviderID > 0 {
		providerCtx, err := a.providerContext(ctx, tenantID, opts.ProviderID)
		if err != nil {
			return nil, err
		}
		personality = Join([]Section{{Body: personality}, {Body: providerCtx}})
	}

	components := models.PromptComponents{
		BasePrompt:            base,
		PersonalityGuidelines: personality,
		ToolInstructions:      ToolInstructions(),
		ConversationRules:     ConversationRules(),
		FallbackGuidelines:    FallbackGuidelines(ResolveFallback(tenant)),
	}

	return &models.AssembledSystemPrompt{
		FullPrompt: Join(Sections(components)),
		Components: components,
	}, nil
}

// Sections lists components in assembly order.
func Sections(c models.PromptComponents) []Section {
	return []Section{
		{Name: SectionBase, Body: c.BasePrompt},
		{Name: SectionPersonality, Body: c.PersonalityGuidelines},
		{Name: SectionTools, Body: c.ToolInstructions},
		{Name: SectionConversation, Body: c.ConversationRules},
		{Name: SectionFallback, Body: c.FallbackGuidelines},
	}
}

func (a *Assembler) resolveBase(ctx context.Context, tenantID int, tenant *models.Tenant, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}

	current, err := a.src.GetCurrentPrompt(ctx, tenantID)
	switch {
	case err == nil && current != nil && strings.TrimSpace(current.Prompt) != "":
		return strings.TrimSpace(current.Prompt), nil
	case errors.Is(err, models.ErrStoreUnavailable):
		return "", fmt.Errorf("load current prompt: %w", err)
	case err != nil && !errors.Is(err, models.ErrPromptNotFound):
		log.Warn().Err(err).Int("tenant_id", tenantID).Msg("⚠️ current prompt lookup failed")
	}

	if tenant == nil {
		return DefaultBasePrompt("", ""), nil
	}
	return DefaultBasePrompt(tenant.Name, tenant.Specialty), nil
}

func (a *Assembler) providerContext(ctx context.Context, tenantID, providerID int) (string, error) {
	provider, err := a.src.GetProvider(ctx, tenantID, providerID)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			return "", fmt.Errorf("load provider: %w", err)
		}
		return "", nil
	}
	return ProviderContext(provider), nil
}

// Validate checks the guarantees every assembled prompt must meet.
func Validate(prompt string) error {
	if len(prompt) <= minPromptLength {
		return fmt.Errorf("prompt too short: %d chars", len(prompt))
	}
	for _, anchor := range []string{AnchorTools, AnchorConversation, AnchorFallback} {
		if !strings.Contains(prompt, anchor) {
			return fmt.Errorf("prompt missing section %q", anchor)
		}
	}
	return nil
}
