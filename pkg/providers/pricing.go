package providers

import "strings"

// Price is a model's cost in US dollars per million tokens.
type Price struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

var (
	// PriceHaiku applies to every model id containing "haiku".
	PriceHaiku = Price{InputPerMTok: 0.80, OutputPerMTok: 4.00}

	// PriceSonnet applies to everything else.
	PriceSonnet = Price{InputPerMTok: 3.00, OutputPerMTok: 15.00}
)

// PriceFor returns the price table entry for model.
func PriceFor(model string) Price {
	if strings.Contains(strings.ToLower(model), "haiku") {
		return PriceHaiku
	}
	return PriceSonnet
}

// CostCents returns the cost of a call in cents.
func CostCents(model string, inputTokens, outputTokens int) float64 {
	p := PriceFor(model)
	dollars := float64(inputTokens)/1e6*p.InputPerMTok + float64(outputTokens)/1e6*p.OutputPerMTok
	return dollars * 100
}
