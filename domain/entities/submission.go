package entities

// SubmissionRequest is the JSON body posted to a submission endpoint
type SubmissionRequest struct {
	Email  string `json:"email"`
	Answer string `json:"answer"`
}

// SubmissionResult is the parsed reply of the quiz server
type SubmissionResult struct {
	StatusCode int    `json:"status_code"`
	NextURL    string `json:"url,omitempty"`     // empty means the sequence is over
	Correct    *bool  `json:"correct,omitempty"` // optional verdict reported by the server
	Reason     string `json:"reason,omitempty"`
}

// HasNext reports whether the server asked to continue with another page.
func (r SubmissionResult) HasNext() bool {
	return r.NextURL != ""
}
