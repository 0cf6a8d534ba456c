package dto

type AttemptResponse struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Kind       string `json:"kind,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type AnalysisResponse struct {
	ID        string            `json:"id"`
	Insights  string            `json:"insights"`
	Provider  string            `json:"provider"`
	Model     string            `json:"model"`
	ObjectKey string            `json:"object_key,omitempty"`
	Attempts  []AttemptResponse `json:"attempts"`
}

type AnalysisRecordResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Insights  string `json:"insights"`
	ObjectKey string `json:"object_key,omitempty"`
	CreatedAt string `json:"created_at"`
}

type TablePreviewResponse struct {
	Columns        []string   `json:"columns"`
	NumericColumns []string   `json:"numeric_columns"`
	Rows           [][]string `json:"rows"`
	TotalRows      int        `json:"total_rows"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	SetupHelp string `json:"setup_help,omitempty"`
}
