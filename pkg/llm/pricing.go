package llm

import "strings"

// Pricing is the USD price per million tokens.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

func (p Pricing) Cost(c Completion) float64 {
	return (float64(c.InputTokens)*p.InputPerMTok + float64(c.OutputTokens)*p.OutputPerMTok) / 1_000_000
}

func (p Pricing) IsZero() bool {
	return p.InputPerMTok == 0 && p.OutputPerMTok == 0
}

// Known list prices by model family prefix; more specific prefixes come first.
var defaultPricing = []struct {
	prefix  string
	pricing Pricing
}{
	{"claude-opus", Pricing{InputPerMTok: 15, OutputPerMTok: 75}},
	{"claude-sonnet", Pricing{InputPerMTok: 3, OutputPerMTok: 15}},
	{"claude-3-5-sonnet", Pricing{InputPerMTok: 3, OutputPerMTok: 15}},
	{"claude-haiku", Pricing{InputPerMTok: 0.8, OutputPerMTok: 4}},
	{"claude-3-5-haiku", Pricing{InputPerMTok: 0.8, OutputPerMTok: 4}},
	{"gpt-4o-mini", Pricing{InputPerMTok: 0.15, OutputPerMTok: 0.6}},
	{"gpt-4o", Pricing{InputPerMTok: 2.5, OutputPerMTok: 10}},
	{"gpt-4", Pricing{InputPerMTok: 30, OutputPerMTok: 60}},
	{"gpt-3.5", Pricing{InputPerMTok: 0.5, OutputPerMTok: 1.5}},
}

// PricingFor returns the list price for model. Unknown and local models are free.
func PricingFor(model string) Pricing {
	m := strings.ToLower(model)
	for _, p := range defaultPricing {
		if strings.HasPrefix(m, p.prefix) {
			return p.pricing
		}
	}
	return Pricing{}
}
