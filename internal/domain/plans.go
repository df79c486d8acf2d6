package domain

// Plan is a subscription plan paid once for a fixed number of days.
type Plan struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Price   int64  `json:"price"` // UGX, whole units
	Days    int    `json:"days"`
	Popular bool   `json:"popular"` // Show "Popular" badge
}

// AvailablePlans returns all available plans.
func AvailablePlans() []Plan {
	return []Plan{
		{ID: "1day", Name: "1 Day", Price: 1000, Days: 1},
		{ID: "3days", Name: "3 Days", Price: 2500, Days: 3},
		{ID: "1week", Name: "1 Week", Price: 5000, Days: 7, Popular: true},
		{ID: "2weeks", Name: "2 Weeks", Price: 9000, Days: 14},
		{ID: "1month", Name: "1 Month", Price: 15000, Days: 30},
	}
}

// FindPlan returns the plan with the given ID.
func FindPlan(id string) (Plan, bool) {
	for _, p := range AvailablePlans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanName resolves a plan ID to its display name, falling back to the ID.
func PlanName(id string) string {
	if p, ok := FindPlan(id); ok {
		return p.Name
	}
	return id
}
