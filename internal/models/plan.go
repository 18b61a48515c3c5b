package models

// Plan describes a purchasable subscription plan. The catalog is fixed
// in code; prices are in NGN.
type Plan struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	DurationDays int     `json:"duration_days"`
	MaxStudents  int     `json:"max_students"`
}

var plans = []Plan{
	{Name: "Basic", Type: "basic", Amount: 15000, Currency: "NGN", DurationDays: 30, MaxStudents: 200},
	{Name: "Pro", Type: "pro", Amount: 45000, Currency: "NGN", DurationDays: 30, MaxStudents: 1000},
	{Name: "Premium", Type: "premium", Amount: 120000, Currency: "NGN", DurationDays: 90, MaxStudents: 5000},
}

// Plans returns the plan catalog.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByType looks up a plan by its type identifier.
func PlanByType(planType string) (Plan, bool) {
	for _, p := range plans {
		if p.Type == planType {
			return p, true
		}
	}
	return Plan{}, false
}
