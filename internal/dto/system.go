package dto

type ProviderResponse struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Model   string   `json:"model"`
	Models  []string `json:"models"`
	Vision  bool     `json:"vision"`
	Ready   bool     `json:"ready"`
	Primary bool     `json:"primary"`
}

type ModelsResponse struct {
	Providers     []ProviderResponse `json:"providers"`
	AllowedModels []string           `json:"allowed_models"`
	Settings      SettingsResponse   `json:"settings"`
	Limits        LimitsResponse     `json:"limits"`
}

type LimitsResponse struct {
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	MinMaxTokens   int     `json:"min_max_tokens"`
	MaxMaxTokens   int     `json:"max_max_tokens"`
	MaxImageBytes  int64   `json:"max_image_bytes"`
}

type SetupResponse struct {
	Markdown string `json:"markdown"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
