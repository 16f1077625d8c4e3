package dataprocessing

// DeriveUsage computes the monthly usage of one item from its chronologically
// ordered stock levels. capacity <= 0 means the item has no configured
// capacity and is never treated as maxed out.
func DeriveUsage(stock []float64, capacity float64) []float64 {
	usage := make([]float64, len(stock))
	for t := 1; t < len(stock); t++ {
		diff := stock[t] - stock[t-1]
		restock := diff > 0
		maxed := capacity > 0 && stock[t] == capacity

		u := -diff
		if restock || maxed || u == 0 {
			// also normalizes -0
			u = 0
		}
		usage[t] = u
	}
	return usage
}
