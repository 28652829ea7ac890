package settings

// Setting keys.
const (
	KeyMonthlyBudgetCents     = "monthly_budget_cents"
	KeyCostPerRoastCents      = "cost_per_roast_cents"
	KeyMaxInputChars          = "max_input_chars"
	KeyMaxInputLines          = "max_input_lines"
	KeyDailyRoastsPerSession  = "daily_roasts_per_session"
	KeyDailyRoastsPerIP       = "daily_roasts_per_ip"
	KeyDailyRoastsGlobal      = "daily_roasts_global"
	KeyEnableRoasting         = "enable_roasting"
	KeyDefaultModel           = "default_model"
	KeyBudgetWarningThreshold = "budget_warning_threshold"
)

// Default values, used for seeding and as read fallbacks.
const (
	DefaultMonthlyBudgetCents     = 2000
	DefaultCostPerRoastCents      = 1
	DefaultMaxInputChars          = 15000
	DefaultMaxInputLines          = 500
	DefaultDailyRoastsPerSession  = 10
	DefaultDailyRoastsPerIP       = 30
	DefaultDailyRoastsGlobal      = 500
	DefaultEnableRoasting         = "true"
	DefaultModel                  = "claude-haiku-4-5-20251001"
	DefaultBudgetWarningThreshold = 80
)

// Kind is the value type of a setting.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

// Definition describes one known setting.
type Definition struct {
	Key         string
	Default     string
	Description string
	Kind        Kind
}

// Definitions lists every setting seeded into a fresh database, in display order.
var Definitions = []Definition{
	{KeyMonthlyBudgetCents, "2000", "Monthly API budget in cents ($20.00)", KindFloat},
	{KeyCostPerRoastCents, "1", "Estimated cost per roast in cents (Haiku)", KindFloat},
	{KeyMaxInputChars, "15000", "Maximum characters per submission", KindInt},
	{KeyMaxInputLines, "500", "Maximum lines per submission", KindInt},
	{KeyDailyRoastsPerSession, "10", "Max roasts per session per day", KindInt},
	{KeyDailyRoastsPerIP, "30", "Max roasts per IP per day", KindInt},
	{KeyDailyRoastsGlobal, "500", "Max total roasts per day", KindInt},
	{KeyEnableRoasting, DefaultEnableRoasting, "Kill switch for roasting", KindBool},
	{KeyDefaultModel, DefaultModel, "Default Claude model", KindString},
	{KeyBudgetWarningThreshold, "80", "Budget warning threshold percent", KindFloat},
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	for _, def := range Definitions {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}
