package model

// MemoryContext is the structured natural-language summary of historical
// performance spliced into the AI voter's prompt. A zero-value
// MemoryContext (all fields empty) represents "no memory" and IsEmpty()
// reports true for it.
type MemoryContext struct {
	OverallSummary     string
	RecentPerformance  string
	BestConditions     string
	WorstConditions    string
	TimingInsights     string
	Recommendations    string
}

// IsEmpty reports whether every field is unset, matching the Python
// original's is_empty() check.
func (m MemoryContext) IsEmpty() bool {
	return m.OverallSummary == "" &&
		m.RecentPerformance == "" &&
		m.BestConditions == "" &&
		m.WorstConditions == "" &&
		m.TimingInsights == "" &&
		m.Recommendations == ""
}

// ToPrompt renders the context as a prompt fragment ready to splice ahead
// of the market-data section of an AI voter's request.
func (m MemoryContext) ToPrompt() string {
	if m.IsEmpty() {
		return ""
	}
	out := "[Historical trade-derived learning data]\n"
	if m.OverallSummary != "" {
		out += "Overall performance: " + m.OverallSummary + "\n"
	}
	if m.RecentPerformance != "" {
		out += "Recent performance: " + m.RecentPerformance + "\n"
	}
	if m.BestConditions != "" {
		out += "Best conditions: " + m.BestConditions + "\n"
	}
	if m.WorstConditions != "" {
		out += "Conditions to avoid: " + m.WorstConditions + "\n"
	}
	if m.TimingInsights != "" {
		out += "Timing analysis: " + m.TimingInsights + "\n"
	}
	if m.Recommendations != "" {
		out += "Recommendations: " + m.Recommendations + "\n"
	}
	return out
}
