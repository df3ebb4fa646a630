package api

import "encoding/json"

// Status is the processing state of an analysis.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further polling is needed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Sentiment is the canonical sentiment label of a theme.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
	SentimentCritical Sentiment = "Critical"
)

// Theme is a named cluster of feedback in canonical form.
type Theme struct {
	Name       string    `json:"name"`
	Summary    string    `json:"summary"`
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
	Count      int       `json:"count"`
	Evidence   []string  `json:"evidence"`
}

// Analysis is the AI-derived result for one upload.
//
// Themes, ExecutiveSummary and ConfidenceScore are only meaningful when
// Status is StatusCompleted.
type Analysis struct {
	UploadID         string          `json:"upload_id"`
	Filename         string          `json:"filename"`
	RowCount         int             `json:"row_count"`
	Status           Status          `json:"status"`
	Themes           []Theme         `json:"themes"`
	ExecutiveSummary string          `json:"executive_summary"`
	ConfidenceScore  float64         `json:"confidence_score"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	AgileRisks       json.RawMessage `json:"agile_risks,omitempty"`
	CreatedAt        string          `json:"created_at,omitempty"`
	HasThemes        bool            `json:"has_themes"`
	Message          string          `json:"message,omitempty"`
}

// Upload is one user-submitted CSV dataset.
//
// The Owner*, SharedAt and Permission fields are only set for uploads
// shared with the caller.
type Upload struct {
	UploadID    string `json:"upload_id"`
	Filename    string `json:"filename"`
	RowCount    int    `json:"row_count"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	HasAnalysis bool   `json:"has_analysis"`
	ThemeCount  int    `json:"theme_count"`
	OwnerEmail  string `json:"owner_email,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"`
	SharedAt    string `json:"shared_at,omitempty"`
	Permission  string `json:"permission,omitempty"`
}

// Shared reports whether the upload belongs to someone else.
func (u Upload) Shared() bool {
	return u.OwnerEmail != ""
}

// UploadResult is the response to a CSV upload.
type UploadResult struct {
	UploadID       string `json:"upload_id"`
	Filename       string `json:"filename"`
	RowCount       int    `json:"row_count"`
	Status         string `json:"status"`
	AnalysisStatus string `json:"analysis_status,omitempty"`
	AnalysisError  string `json:"analysis_error,omitempty"`
	Message        string `json:"message"`
}

// Token is the bearer credential issued by login and registration.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterRequest holds the sign-up form.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	CompanyName string `json:"company_name"`
}

// RegisterResult is returned by Register. When VerificationRequired is set
// the account must be verified by email before a token is usable.
type RegisterResult struct {
	AccessToken          string `json:"access_token"`
	TokenType            string `json:"token_type"`
	VerificationRequired bool   `json:"verification_required"`
	Message              string `json:"message,omitempty"`
}

// UsageQuota is the plan-scoped analysis allowance.
type UsageQuota struct {
	PlanTier      string `json:"plan_tier"`
	AnalysesLimit int    `json:"analyses_limit"`
	AnalysesUsed  int    `json:"analyses_used"`
}

// Remaining returns how many analyses are left in the period.
func (q UsageQuota) Remaining() int {
	if r := q.AnalysesLimit - q.AnalysesUsed; r > 0 {
		return r
	}
	return 0
}

// Profile is the authenticated user's account.
type Profile struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FullName    string      `json:"full_name"`
	CompanyName string      `json:"company_name"`
	Role        string      `json:"role"`
	CreatedAt   string      `json:"created_at"`
	UsageQuota  *UsageQuota `json:"usage_quota,omitempty"`
}

// ProfileUpdate holds the editable profile fields.
type ProfileUpdate struct {
	FullName    string `json:"full_name"`
	CompanyName string `json:"company_name"`
}

// ShareResult is the outcome of inviting a collaborator.
//
// EmailSent is false when access was granted but the notification email
// could not be delivered. A response without email_sent decodes as true.
type ShareResult struct {
	ShareID      string `json:"share_id"`
	UploadID     string `json:"upload_id"`
	Filename     string `json:"filename"`
	InvitedEmail string `json:"invited_email"`
	Status       string `json:"status"`
	Permission   string `json:"permission"`
	CreatedAt    string `json:"created_at"`
	Message      string `json:"message"`
	EmailSent    bool   `json:"email_sent"`
}

// Share is one recipient of an upload.
type Share struct {
	ShareID    string `json:"share_id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Status     string `json:"status"`
	Permission string `json:"permission"`
	SharedAt   string `json:"shared_at"`
	ExpiresAt  string `json:"expires_at"`
}

// Health is the API root status document.
type Health struct {
	Status string `json:"status"`
}
