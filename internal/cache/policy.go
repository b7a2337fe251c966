package cache

import "time"

// DataType tags what a cache entry holds and selects its TTL tier.
type DataType string

const (
	ContactInfo         DataType = "contact_info"
	ClinicHours         DataType = "clinic_hours"
	InsuranceInfo       DataType = "insurance_info"
	ProviderInfo        DataType = "provider_info"
	ClinicServices      DataType = "clinic_services"
	AppointmentPolicies DataType = "appointment_policies"
	ConditionsTreated   DataType = "conditions_treated"
	TenantProfile       DataType = "tenant_profile"
	CurrentPrompt       DataType = "current_prompt"
)

type Tier int

const (
	TierDefault Tier = iota
	TierStable
)

const (
	DefaultTTL = 5 * time.Minute
	StableTTL  = 30 * time.Minute
)

// TTLPolicy maps data types to tiers and tiers to durations. Types missing
// from Tiers fall into TierDefault.
type TTLPolicy struct {
	TTLs  map[Tier]time.Duration
	Tiers map[DataType]Tier
}

func DefaultPolicy() TTLPolicy {
	return NewPolicy(DefaultTTL, StableTTL)
}

func NewPolicy(defaultTTL, stableTTL time.Duration) TTLPolicy {
	return TTLPolicy{
		TTLs: map[Tier]time.Duration{
			TierDefault: defaultTTL,
			TierStable:  stableTTL,
		},
		Tiers: map[DataType]Tier{
			ContactInfo:   TierStable,
			ClinicHours:   TierStable,
			InsuranceInfo: TierStable,
			ProviderInfo:  TierStable,
		},
	}
}

func (p TTLPolicy) TierFor(t DataType) Tier {
	if tier, ok := p.Tiers[t]; ok {
		return tier
	}
	return TierDefault
}

func (p TTLPolicy) TTLFor(t DataType) time.Duration {
	if d, ok := p.TTLs[p.TierFor(t)]; ok && d > 0 {
		return d
	}
	if d, ok := p.TTLs[TierDefault]; ok && d > 0 {
		return d
	}
	return DefaultTTL
}
