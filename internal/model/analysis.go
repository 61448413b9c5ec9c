package model

import "time"

// TokenUsage accumulates token consumption across gateway calls.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
}

// Add accumulates usage from another TokenUsage.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// Total returns total tokens consumed.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
}

// AnalysisRecord is a persisted analysis of one transcript: the
// classification, the rubric score, and bookkeeping.
type AnalysisRecord struct {
	ID           string       `json:"id"`
	CreatedAt    time.Time    `json:"created_at"`
	Transcript   string       `json:"transcript"`
	ScenarioType ScenarioType `json:"scenario_type"`
	TotalScore   float64      `json:"total_score"`
	Call         *CallData    `json:"call,omitempty"`
	Score        *QAScore     `json:"score,omitempty"`
	Usage        TokenUsage   `json:"usage"`
}

// CriticalIssue is a knockout violation recorded against an analysis,
// stored separately so compliance review can query them directly.
type CriticalIssue struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	IssueType  string    `json:"issue_type"`
	Detail     string    `json:"detail,omitempty"`
	Evidence   string    `json:"evidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Issue types recorded in critical_issues.
const (
	IssueUnauthorizedDisclosure = "unauthorized_disclosure"
	IssuePTPCheating            = "ptp_cheating"
	IssueOther                  = "other"
)

// CriticalIssuesFor derives the persisted issue rows from a score's
// knockout flags.
func CriticalIssuesFor(analysisID string, k KnockoutViolations) []CriticalIssue {
	var issues []CriticalIssue
	if k.UnauthorizedDisclosure {
		issues = append(issues, CriticalIssue{
			AnalysisID: analysisID,
			IssueType:  IssueUnauthorizedDisclosure,
			Evidence:   k.DisclosureEvidence,
		})
	}
	if k.PTPCheating {
		issues = append(issues, CriticalIssue{
			AnalysisID: analysisID,
			IssueType:  IssuePTPCheating,
			Evidence:   k.PTPCheatingEvidence,
		})
	}
	for _, v := range k.OtherViolations {
		issues = append(issues, CriticalIssue{
			AnalysisID: analysisID,
			IssueType:  IssueOther,
			Detail:     v,
		})
	}
	return issues
}

// AnalysisStats summarizes stored analyses for reporting.
type AnalysisStats struct {
	TotalAnalyses        int                  `json:"total_analyses"`
	AverageScore         float64              `json:"average_score"`
	PassingRate          float64              `json:"passing_rate"`
	ScenarioDistribution map[ScenarioType]int `json:"scenario_distribution"`
}
