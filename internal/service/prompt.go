package service

import (
	"fmt"
	"strings"
)

const analystPreamble = "You are a senior data analyst."

const analysisPoints = "1) Key trends\n2) Anomalies/outliers\n3) Business insights\n4) Recommended next steps "

// BuildImagePrompt returns the instruction sent along with a chart image.
func BuildImagePrompt() string {
	return analystPreamble + " Analyze this chart and provide:\n" + analysisPoints +
		"with metrics that could be tracked next and any quick checks to validate the insights."
}

// BuildTablePrompt embeds a CSV sample in the table analysis instruction.
func BuildTablePrompt(sample string) string {
	return analystPreamble + " I will provide a small sample of a dataset (CSV text). " +
		"Infer the likely chart patterns and provide:\n" + analysisPoints +
		"and which visualizations would best reveal them.\n\nHere is the sample:\n\n" + sample
}

// SetupHelp explains how to configure credentials for the given providers.
// The text is markdown.
func SetupHelp(order []string, secretsFile string) string {
	var sb strings.Builder
	sb.WriteString("### How to enable the API\n\n")
	sb.WriteString("1. **Create an API key** on the provider's developer platform (Dashboard → API keys).\n")
	sb.WriteString("2. **Add a payment method** if the provider bills per use. Chat subscriptions do not include API access.\n")
	sb.WriteString("3. **Add your key to the service**\n")
	sb.WriteString("   - EITHER set an environment variable (or a line in `.env`):\n")
	sb.WriteString("     ```bash\n")
	for _, name := range order {
		if env := credentialEnv(name); env != "" {
			fmt.Fprintf(&sb, "     export %s=\"...yourkey...\"\n", env)
		}
	}
	sb.WriteString("     ```\n")
	fmt.Fprintf(&sb, "   - OR create `%s`:\n", secretsFile)
	sb.WriteString("     ```toml\n")
	for _, name := range order {
		if env := credentialEnv(name); env != "" {
			fmt.Fprintf(&sb, "     %s = \"...yourkey...\"\n", env)
		}
	}
	sb.WriteString("     ```\n")
	sb.WriteString("   - OR paste a key when creating a session; it stays on the server for the session lifetime.\n")
	return sb.String()
}

// credentialEnv names the variable holding the key of a provider.
func credentialEnv(provider string) string {
	switch provider {
	case "ollama":
		return ""
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return strings.ToUpper(provider) + "_API_KEY"
	}
}
