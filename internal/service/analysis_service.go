package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"chart-insights/internal/models"
	"chart-insights/internal/repository"
	"chart-insights/pkg/config"
	"chart-insights/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Archiver stores analysed inputs. pkg/storage.Store implements it.
type Archiver interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Recorder receives attempt and analysis counts. pkg/middleware.Metrics
// implements it.
type Recorder interface {
	AttemptRecorder
	RecordAnalysis(err error)
}

// AnalysisResult is the answer to one analysis request.
type AnalysisResult struct {
	ID        string
	Insights  string
	Provider  string
	Model     string
	ObjectKey string
	Attempts  []Attempt
}

// ProviderStatus describes one entry of the fallback chain.
type ProviderStatus struct {
	Name    string
	Title   string
	Model   string
	Models  []string
	Vision  bool
	Ready   bool
	Primary bool
}

// TablePreview is the head of an uploaded table.
type TablePreview struct {
	Columns        []string
	NumericColumns []string
	Rows           [][]string
	TotalRows      int
}

type AnalysisService struct {
	registry *ProviderRegistry
	history  repository.AnalysisStore
	archive  Archiver
	recorder Recorder
	llm      config.LLMConfig
	table    config.TableConfig
	logger   *zap.Logger
}

// NewAnalysisService wires the use cases. archive and recorder may be nil.
func NewAnalysisService(
	registry *ProviderRegistry,
	history repository.AnalysisStore,
	archive Archiver,
	recorder Recorder,
	llm config.LLMConfig,
	table config.TableConfig,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		registry: registry,
		history:  history,
		archive:  archive,
		recorder: recorder,
		llm:      llm,
		table:    table,
		logger:   logger,
	}
}

// AnalyzeImage sends a chart image down the provider chain.
func (s *AnalysisService) AnalyzeImage(ctx context.Context, session *Session, in ImageInput) (*AnalysisResult, error) {
	img, err := EncodeImage(in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Analyzing image",
		zap.String("file_name", in.FileName),
		zap.Int("size", len(in.Data)),
		zap.String("mime", img.MIME),
	)

	req := CompletionRequest{Prompt: BuildImagePrompt(), Image: img}
	return s.analyze(ctx, session, req, models.InputKindImage, in.FileName, in.Data, img.MIME)
}

// AnalyzeTable sends a truncated CSV sample of the table down the chain.
func (s *AnalysisService) AnalyzeTable(ctx context.Context, session *Session, in TableInput) (*AnalysisResult, error) {
	t, err := ReadTable(bytes.NewReader(in.Data), in.FileName)
	if err != nil {
		return nil, err
	}

	sample, err := TruncateTableForPrompt(t, s.table.MaxRows, s.table.MaxChars)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Analyzing table",
		zap.String("file_name", in.FileName),
		zap.Int("rows", len(t.Rows)),
		zap.Int("columns", len(t.Columns)),
		zap.Int("sample_chars", len(sample)),
	)

	req := CompletionRequest{Prompt: BuildTablePrompt(sample)}
	return s.analyze(ctx, session, req, models.InputKindTable, in.FileName, in.Data, tableContentType(in.FileName))
}

func (s *AnalysisService) analyze(
	ctx context.Context,
	session *Session,
	req CompletionRequest,
	kind models.InputKind,
	fileName string,
	data []byte,
	contentType string,
) (*AnalysisResult, error) {
	if session == nil {
		session = &Session{Settings: Settings{Temperature: s.llm.Temperature, MaxTokens: s.llm.MaxTokens}}
	}
	req.Temperature = session.Settings.Temperature
	req.MaxTokens = session.Settings.MaxTokens

	providers, release, err := s.providers(ctx, session, req.Image != nil)
	if err != nil {
		s.record(err)
		return nil, err
	}
	defer release()

	req.Model = s.firstModel(providers, session.Settings.Model, req.Image != nil)

	res, err := NewFallbackChain(providers, s.llm.Timeout, s.recorder, s.logger).Run(ctx, req)
	s.record(err)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		ID:       uuid.New().String(),
		Insights: res.Text,
		Provider: res.Provider,
		Model:    res.Model,
		Attempts: res.Attempts,
	}
	result.ObjectKey = s.archiveInput(ctx, kind, fileName, data, contentType)
	s.saveHistory(ctx, session, kind, fileName, int64(len(data)), result)
	return result, nil
}

// providers acquires the chain in configured order. Providers without any
// credential are left out; a provider that cannot be built still takes its
// turn and fails with the build error.
func (s *AnalysisService) providers(ctx context.Context, session *Session, vision bool) ([]Provider, func(), error) {
	var (
		chain    []Provider
		releases []func()
	)
	release := func() {
		for _, r := range releases {
			r()
		}
	}

	for _, name := range s.registry.Order() {
		cfg, ok := s.registry.Config(name)
		if !ok {
			s.logger.Warn("Unknown provider in LLM_PROVIDERS", zap.String("provider", name))
			continue
		}
		key := session.APIKey(name)
		if !s.registry.HasCredentials(name, key) {
			s.logger.Debug("Skipping provider without credentials", zap.String("provider", name))
			continue
		}

		p, rel, err := s.registry.Acquire(ctx, name, key)
		if err != nil {
			s.logger.Error("Failed to create provider", zap.String("provider", name), zap.Error(err))
			chain = append(chain, &unavailableProvider{cfg: cfg, err: err})
			continue
		}
		chain = append(chain, p)
		releases = append(releases, rel)
	}

	if len(chain) == 0 {
		return nil, release, fmt.Errorf("%s: %w", strings.Join(s.registry.Order(), ","), ErrNoCredentials)
	}
	if vision && !slices.ContainsFunc(chain, Provider.SupportsVision) {
		release()
		return nil, func() {}, ErrNoProvider
	}
	return chain, release, nil
}

// firstModel keeps the session's model only when the provider that will
// be tried first offers it.
func (s *AnalysisService) firstModel(chain []Provider, model string, vision bool) string {
	if model == "" {
		return ""
	}
	for _, p := range chain {
		if vision && !p.SupportsVision() {
			continue
		}
		cfg, _ := s.registry.Config(p.Name())
		if slices.Contains(cfg.Models, model) {
			return model
		}
		s.logger.Debug("Session model not offered by first provider, using its default",
			zap.String("provider", p.Name()),
			zap.String("model", model),
		)
		return ""
	}
	return ""
}

func (s *AnalysisService) archiveInput(ctx context.Context, kind models.InputKind, fileName string, data []byte, contentType string) string {
	if s.archive == nil {
		return ""
	}
	key, err := s.archive.Upload(ctx, storage.ObjectKey(string(kind), fileName, time.Now()), data, contentType)
	if err != nil {
		s.logger.Warn("Failed to archive input", zap.String("file_name", fileName), zap.Error(err))
		return ""
	}
	return key
}

func (s *AnalysisService) saveHistory(ctx context.Context, session *Session, kind models.InputKind, fileName string, size int64, result *AnalysisResult) {
	// anonymous requests have nobody to list them
	if s.history == nil || session.ID == "" {
		return
	}

	id, _ := uuid.Parse(result.ID)
	record := &models.Analysis{
		ID:        id,
		SessionID: session.ID,
		Kind:      kind,
		FileName:  cleanText(fileName),
		FileSize:  size,
		Provider:  result.Provider,
		Model:     result.Model,
		Insights:  cleanText(result.Insights),
		ObjectKey: result.ObjectKey,
		CreatedAt: time.Now(),
	}
	if err := s.history.Create(ctx, record); err != nil {
		s.logger.Warn("Failed to save analysis history", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (s *AnalysisService) record(err error) {
	if s.recorder != nil {
		s.recorder.RecordAnalysis(err)
	}
}

// PreviewTable parses the upload and returns its first rows.
func (s *AnalysisService) PreviewTable(in TableInput) (*TablePreview, error) {
	t, err := ReadTable(bytes.NewReader(in.Data), in.FileName)
	if err != nil {
		return nil, err
	}
	head := Preview(t, s.table.PreviewRows)
	return &TablePreview{
		Columns:        t.Columns,
		NumericColumns: t.NumericColumns(),
		Rows:           head.Rows,
		TotalRows:      len(t.Rows),
	}, nil
}

// PlotTable draws yCol over xCol as a PNG.
func (s *AnalysisService) PlotTable(in TableInput, yCol, xCol string) ([]byte, error) {
	t, err := ReadTable(bytes.NewReader(in.Data), in.FileName)
	if err != nil {
		return nil, err
	}
	return PlotLine(t, yCol, xCol)
}

// ListAnalyses returns the session's history, newest first.
func (s *AnalysisService) ListAnalyses(ctx context.Context, sessionID string, limit, offset int) ([]*models.Analysis, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	analyses, err := s.history.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

// Providers reports the chain as seen by session.
func (s *AnalysisService) Providers(session *Session) []ProviderStatus {
	var out []ProviderStatus
	for i, name := range s.registry.Order() {
		cfg, ok := s.registry.Config(name)
		if !ok {
			continue
		}
		out = append(out, ProviderStatus{
			Name:    name,
			Title:   ProviderTitle(name),
			Model:   cfg.Model,
			Models:  cfg.Models,
			Vision:  cfg.Vision,
			Ready:   s.registry.HasCredentials(name, session.APIKey(name)),
			Primary: i == 0,
		})
	}
	return out
}

// SetupHelp returns the credential instructions for the configured chain.
func (s *AnalysisService) SetupHelp() string {
	return SetupHelp(s.registry.Order(), s.llm.SecretsFile)
}

func tableContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	}
	if t := mime.TypeByExtension(filepath.Ext(fileName)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// unavailableProvider stands in for a provider whose client could not be
// built, so that it fails its turn in the chain.
type unavailableProvider struct {
	cfg config.ProviderConfig
	err error
}

func (u *unavailableProvider) Name() string         { return u.cfg.Name }
func (u *unavailableProvider) SupportsVision() bool { return u.cfg.Vision }
func (u *unavailableProvider) DefaultModel() string { return u.cfg.Model }

func (u *unavailableProvider) Complete(context.Context, CompletionRequest) (string, error) {
	return "", u.err
}

// IsInputError reports whether err was caused by the uploaded file rather
// than by a provider.
func IsInputError(err error) bool {
	var fileErr *FileReadError
	return errors.As(err, &fileErr) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, ErrEmptyImage) ||
		errors.Is(err, ErrUnsupportedImage) ||
		errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrNotNumeric) ||
		errors.Is(err, ErrNoPlotData) ||
		errors.Is(err, ErrMissingAxis)
}
