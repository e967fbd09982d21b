package extract

// AnalysisRecord summarises every sold item sharing one exact name.
type AnalysisRecord struct {
	ItemName     string  `json:"item_name"`
	AveragePrice float64 `json:"average_price"`
	Frequency    int     `json:"frequency"`
}

// Analyze groups items by exact name in first-appearance order.
func Analyze(items []SoldItem) []AnalysisRecord {
	out := make([]AnalysisRecord, 0)
	sums := make([]float64, 0)
	index := make(map[string]int, len(items))
	for _, item := range items {
		i, ok := index[item.ItemName]
		if !ok {
			i = len(out)
			index[item.ItemName] = i
			out = append(out, AnalysisRecord{ItemName: item.ItemName})
			sums = append(sums, 0)
		}
		out[i].Frequency++
		sums[i] += item.SoldPrice
	}
	for i := range out {
		out[i].AveragePrice = sums[i] / float64(out[i].Frequency)
	}
	return out
}
