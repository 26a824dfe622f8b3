package model

import "time"

// RunStatus tracks the lifecycle of a brief-generation run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// BriefResult is the output of one brief-generation run: the rendered
// narrative plus the validated artifacts it was grounded on.
type BriefResult struct {
	Account     SharedAccountMatch    `json:"account"`
	Markdown    string                `json:"markdown"`
	CallCount   int                   `json:"call_count"`
	Duplicates  []DuplicateResolution `json:"duplicates,omitempty"`
	Quotes      []QuoteEvidence       `json:"quotes,omitempty"`
	Claims      []QuantClaim          `json:"claims,omitempty"`
	Model       string                `json:"model,omitempty"`
	CostUSD     float64               `json:"cost_usd,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Run is one persisted brief-generation request.
type Run struct {
	ID          string       `json:"id"`
	AccountName string       `json:"account_name"`
	Status      RunStatus    `json:"status"`
	Result      *BriefResult `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
