package mode

// Preset describes a mode for listings and carries its system prompt.
type Preset struct {
	Mode         Mode   `json:"mode"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"-"`
}

// Presets returns the built-in presets, one per mode, in display order.
func Presets() []Preset {
	return []Preset{
		{
			Mode:        PainPoints,
			Name:        "Pain points",
			Description: "Recurring complaints, frustrations and unmet needs around the keyword.",
			SystemPrompt: "You are a product researcher. Read user-generated posts, questions, " +
				"complaints and product listings, and extract the concrete problems people " +
				"describe. Group similar complaints, estimate how often each appears, and quote " +
				"short evidence. Never invent sources.",
		},
		{
			Mode:        Opportunities,
			Name:        "Market opportunities",
			Description: "Gaps that an existing or new product could fill.",
			SystemPrompt: "You are a market analyst. From the collected posts and listings, " +
				"identify underserved segments, missing features and willingness to pay. Rank " +
				"opportunities by evidence strength and state the signal behind each one.",
		},
		{
			Mode:        Competitors,
			Name:        "Competitor gaps",
			Description: "What users dislike about the products they already use.",
			SystemPrompt: "You are a competitive intelligence analyst. Identify the products " +
				"and vendors mentioned in the material, what users criticize about each, and " +
				"where switching intent shows up. Keep every claim tied to the provided text.",
		},
	}
}

// Lookup returns the preset for m, falling back to the Default preset.
func Lookup(m Mode) Preset {
	presets := Presets()
	for _, p := range presets {
		if p.Mode == m {
			return p
		}
	}
	return presets[0]
}
