package verifier

// EnrollResult is returned by Enroll on success.
type EnrollResult struct {
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
	PointID    int64  `json:"point_id"`
	NumSamples int    `json:"num_samples"`
}

// CohortStats summarizes the AS-Norm cohort statistics computed during a
// Verify call.
type CohortStats struct {
	MeanEnroll   float64 `json:"mu_e"`
	StdEnroll    float64 `json:"sigma_e"`
	MeanTest     float64 `json:"mu_t"`
	StdTest      float64 `json:"sigma_t"`
	CohortSize   int     `json:"cohort_size"`
}

// VerifyResult is returned by Verify, whether or not the customer has an
// enrolled voiceprint. When Error is non-empty, Verified is always false
// and the remaining numeric fields are zero.
type VerifyResult struct {
	Verified    bool        `json:"verified"`
	Score       float64     `json:"score,omitempty"`
	RawScore    float64     `json:"raw_score,omitempty"`
	Threshold   float64     `json:"threshold,omitempty"`
	CohortStats CohortStats `json:"cohort_stats,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// DeleteResult is returned by Delete.
type DeleteResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HistoryEntry is one row of a customer's verification history.
type HistoryEntry struct {
	ID           string  `json:"id"`
	RawPLDAScore float64 `json:"raw_plda_score"`
	ASNormScore  float64 `json:"as_norm_score"`
	Threshold    float64 `json:"threshold"`
	CreatedAt    string  `json:"created_at"`
}
