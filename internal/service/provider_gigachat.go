package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chart-insights/pkg/config"

	"github.com/Role1776/gigago"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GigaChatProvider sends text prompts through the gigago client. Images go
// through the REST files API: upload first, then reference the file id as an
// attachment of the chat message.
type GigaChatProvider struct {
	client *gigago.Client
	files  *gigaChatREST
	model  string
	vision bool
	logger *zap.Logger
}

func NewGigaChatProvider(ctx context.Context, cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	var opts []gigago.Option
	if cfg.Scope != "" {
		opts = append(opts, gigago.WithCustomScope(cfg.Scope))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, gigago.WithCustomURLAI(strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions"))
	}
	if cfg.AuthURL != "" {
		opts = append(opts, gigago.WithCustomURLOauth(cfg.AuthURL))
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	httpClient := &http.Client{}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &GigaChatProvider{
		client: client,
		files:  newGigaChatREST(cfg, httpClient, logger),
		model:  cfg.Model,
		vision: cfg.Vision,
		logger: logger,
	}, nil
}

func (p *GigaChatProvider) Name() string         { return "gigachat" }
func (p *GigaChatProvider) SupportsVision() bool { return p.vision }
func (p *GigaChatProvider) DefaultModel() string { return p.model }

func (p *GigaChatProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := pickModel(req, p.model)
	if req.Image != nil {
		return p.files.completeWithImage(ctx, model, req)
	}

	gm := p.client.GenerativeModel(model)
	gm.Temperature = req.Temperature
	if req.MaxTokens > 0 {
		gm.MaxTokens = int32(req.MaxTokens)
	}

	resp, err := gm.Generate(ctx, []gigago.Message{
		{Role: gigago.RoleUser, Content: req.Prompt},
	})
	if err != nil {
		return "", fmt.Errorf("gigachat generate: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("gigachat: %w", ErrEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *GigaChatProvider) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

// StatusError is a non-2xx answer from a REST endpoint.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// gigaChatREST covers the parts of the GigaChat API the gigago client does
// not: OAuth tokens, file upload and chat completions with attachments.
type gigaChatREST struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func newGigaChatREST(cfg config.ProviderConfig, httpClient *http.Client, logger *zap.Logger) *gigaChatREST {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &gigaChatREST{cfg: cfg, httpClient: httpClient, logger: logger}
}

func (g *gigaChatREST) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Until(g.expiresAt) > time.Minute {
		return g.accessToken, nil
	}

	form := url.Values{}
	form.Set("scope", g.cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create OAuth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.New().String())
	// the key is the Base64 "client_id:secret" pair issued by the portal
	req.Header.Set("Authorization", "Basic "+g.cfg.APIKey)

	var oauthResp struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"` // unix millis
	}
	if err := g.do(req, &oauthResp); err != nil {
		return "", err
	}
	if oauthResp.AccessToken == "" {
		return "", fmt.Errorf("gigachat: empty access token in OAuth response")
	}

	g.accessToken = oauthResp.AccessToken
	g.expiresAt = time.UnixMilli(oauthResp.ExpiresAt)
	if oauthResp.ExpiresAt == 0 {
		g.expiresAt = time.Now().Add(30 * time.Minute)
	}
	g.logger.Debug("GigaChat access token obtained", zap.Time("expires_at", g.expiresAt))
	return g.accessToken, nil
}

func (g *gigaChatREST) dropToken() {
	g.mu.Lock()
	g.accessToken = ""
	g.mu.Unlock()
}

// uploadFile stores the image under purpose "general" so that chat
// completions can reference it.
func (g *gigaChatREST) uploadFile(ctx context.Context, token string, img *EncodedImage) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("purpose", "general"); err != nil {
		return "", fmt.Errorf("failed to write purpose field: %w", err)
	}

	part, err := writer.CreatePart(map[string][]string{
		"Content-Type":        {img.MIME},
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, "chart"+extensionFor(img.MIME))},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", fmt.Errorf("failed to copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/files", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var uploadResp struct {
		ID string `json:"id"`
	}
	if err := g.do(req, &uploadResp); err != nil {
		return "", err
	}
	g.logger.Debug("File uploaded to GigaChat", zap.String("file_id", uploadResp.ID))
	return uploadResp.ID, nil
}

func (g *gigaChatREST) completeWithImage(ctx context.Context, model string, req CompletionRequest) (string, error) {
	text, err := g.chatWithImage(ctx, model, req)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		// next call fetches a fresh token
		g.dropToken()
	}
	return text, err
}

func (g *gigaChatREST) chatWithImage(ctx context.Context, model string, req CompletionRequest) (string, error) {
	token, err := g.token(ctx)
	if err != nil {
		return "", err
	}

	fileID, err := g.uploadFile(ctx, token, req.Image)
	if err != nil {
		return "", err
	}

	// attachments format: [["file_id"]]
	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{
				"role":        "user",
				"content":     req.Prompt,
				"attachments": [][]string{{fileID}},
			},
		},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
		"stream":      false,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := g.do(httpReq, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("gigachat: %w", ErrEmptyCompletion)
	}
	return chatResp.Choices[0].Message.Content, nil
}

func (g *gigaChatREST) do(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gigachat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Provider: "gigachat", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gigachat response: %w", err)
	}
	return nil
}

func extensionFor(mt string) string {
	for ext, m := range imageExtMIME {
		if m == mt && ext != ".jpe" && ext != ".jpeg" {
			return ext
		}
	}
	return ".png"
}
