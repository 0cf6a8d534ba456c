package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	ollama "github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ErrorKind groups provider failures by what the user can do about them.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindConnection ErrorKind = "connection"
	KindBadRequest ErrorKind = "bad_request"
	KindAPI        ErrorKind = "api"
	KindUnknown    ErrorKind = "unknown"
	KindSetup      ErrorKind = "setup"
)

const (
	msgAuth       = "Authentication failed. Check that your API key is valid."
	msgRateLimit  = "Rate limit or quota reached. Check billing/quota on the platform."
	msgConnection = "Network issue connecting to the AI provider. Please retry or check your internet."
	msgBadRequest = "Bad request (likely input format/model mismatch)."
	msgSetup      = "No API key detected. Add it via the secrets file or an environment variable."
)

var providerTitles = map[string]string{
	"openai":    "OpenAI",
	"groq":      "Groq",
	"gigachat":  "GigaChat",
	"anthropic": "Anthropic",
	"gemini":    "Gemini",
	"ollama":    "Ollama",
}

// ProviderTitle is the display name of a provider.
func ProviderTitle(name string) string {
	if t, ok := providerTitles[name]; ok {
		return t
	}
	return name
}

// Classify maps an error returned by a provider to its kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoCredentials) {
		return KindSetup
	}
	if status, ok := httpStatus(err); ok {
		return kindForStatus(status)
	}
	if isConnectionError(err) {
		return KindConnection
	}
	return KindUnknown
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return KindRateLimit
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return KindBadRequest
	default:
		return KindAPI
	}
}

// httpStatus digs the HTTP status out of the SDK error types.
func httpStatus(err error) (int, bool) {
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) && openaiErr.HTTPStatusCode > 0 {
		return openaiErr.HTTPStatusCode, true
	}
	var openaiReqErr *openai.RequestError
	if errors.As(err, &openaiReqErr) && openaiReqErr.HTTPStatusCode > 0 {
		return openaiReqErr.HTTPStatusCode, true
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) && anthropicErr.StatusCode > 0 {
		return anthropicErr.StatusCode, true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) && genaiErr.Code > 0 {
		return genaiErr.Code, true
	}
	var ollamaErr ollama.StatusError
	if errors.As(err, &ollamaErr) && ollamaErr.StatusCode > 0 {
		return ollamaErr.StatusCode, true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode > 0 {
		return statusErr.StatusCode, true
	}
	return 0, false
}

func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// apiMessage is the provider's own description of an API error.
func apiMessage(err error) string {
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) && openaiErr.Message != "" {
		return openaiErr.Message
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		if msg := jsonErrorMessage(anthropicErr.RawJSON()); msg != "" {
			return msg
		}
		return http.StatusText(anthropicErr.StatusCode)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) && genaiErr.Message != "" {
		return genaiErr.Message
	}
	var ollamaErr ollama.StatusError
	if errors.As(err, &ollamaErr) && ollamaErr.ErrorMessage != "" {
		return ollamaErr.ErrorMessage
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if msg := jsonErrorMessage(statusErr.Body); msg != "" {
			return msg
		}
		if statusErr.Body != "" {
			return statusErr.Body
		}
		return http.StatusText(statusErr.StatusCode)
	}
	return err.Error()
}

// jsonErrorMessage pulls "message" out of the common error envelopes.
func jsonErrorMessage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '{' {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return ""
	}
	if body.Error.Message != "" {
		return body.Error.Message
	}
	return body.Message
}

// FriendlyMessage is the text shown to the user for a failed call.
func FriendlyMessage(provider string, err error) string {
	switch Classify(err) {
	case KindAuth:
		return msgAuth
	case KindRateLimit:
		return msgRateLimit
	case KindConnection:
		return msgConnection
	case KindBadRequest:
		return msgBadRequest
	case KindSetup:
		return msgSetup
	case KindAPI:
		return ProviderTitle(provider) + " API error: " + apiMessage(err)
	default:
		return err.Error()
	}
}

// NeedsSetupHelp reports whether the setup instructions should accompany
// an error of this kind.
func NeedsSetupHelp(kind ErrorKind) bool {
	return kind == KindAuth || kind == KindRateLimit || kind == KindSetup
}

// Explain returns the kind and user message for an analysis failure. For a
// chain failure it describes the first attempt.
func Explain(err error) (ErrorKind, string) {
	var chainErr *ChainError
	if errors.As(err, &chainErr) && len(chainErr.Attempts) > 0 {
		first := chainErr.First()
		return first.Kind, FriendlyMessage(first.Provider, first.Err())
	}
	return Classify(err), FriendlyMessage("", err)
}
