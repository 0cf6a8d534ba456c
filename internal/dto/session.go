package dto

type SettingsRequest struct {
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type CreateSessionRequest struct {
	SettingsRequest
	// APIKeys maps provider name to a key typed in by the user.
	APIKeys map[string]string `json:"api_keys,omitempty"`
}

type SettingsResponse struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type SessionResponse struct {
	Token        string           `json:"token,omitempty"`
	TokenType    string           `json:"token_type,omitempty"`
	ExpiresIn    int64            `json:"expires_in,omitempty"`
	Settings     SettingsResponse `json:"settings"`
	KeyProviders []string         `json:"key_providers"`
}
