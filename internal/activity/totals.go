package activity

// LogTotals sums token usage over a set of call logs.
type LogTotals struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	Calls        int   `json:"calls"`
}

// Totals sums usage across logs. Missing token counts contribute 0.
func Totals(logs []AICallLog) LogTotals {
	var t LogTotals
	for _, l := range logs {
		if l.InputTokens != nil {
			t.InputTokens += *l.InputTokens
		}
		if l.OutputTokens != nil {
			t.OutputTokens += *l.OutputTokens
		}
		t.Calls++
	}
	return t
}
