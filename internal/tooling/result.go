package tooling

// Listing is the directory part of a list_files result. Entries are relative
// to the workspace root.
type Listing struct {
	Files       []string `json:"files"`
	Directories []string `json:"directories"`
}

// Result is the outcome of a workspace operation. Failures never surface as Go
// errors from the store, runner, or dispatcher: they come back with Success
// false, a human-readable Error, and the underlying cause in Err.
type Result struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message,omitempty"`
	Path      string   `json:"path,omitempty"`
	Content   *string  `json:"content,omitempty"`
	Stdout    *string  `json:"stdout,omitempty"`
	Stderr    *string  `json:"stderr,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	Listing   *Listing `json:"listing,omitempty"`
	Error     string   `json:"error,omitempty"`
	Err       error    `json:"-"`
}

// FormattedResult is the text block handed back to a completion provider.
type FormattedResult struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error(), Err: err}
}

func ptr(s string) *string {
	return &s
}
