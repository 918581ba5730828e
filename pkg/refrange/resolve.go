package refrange

// Resolve picks the applicable config out of the active set for one test
// code. A gender-agnostic config is authoritative and wins over any
// gender-specific one; otherwise the caller's gender must match exactly.
// Gender matching is case-sensitive so data-entry inconsistencies surface
// instead of being silently normalized away.
func Resolve(configs []Config, gender string) (*Config, bool) {
	for i := range configs {
		if configs[i].Gender == "" {
			return &configs[i], true
		}
	}
	if gender != "" {
		for i := range configs {
			if configs[i].Gender == gender {
				return &configs[i], true
			}
		}
	}
	return nil, false
}
