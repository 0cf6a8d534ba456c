package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"chart-insights/internal/models"
	"chart-insights/internal/repository"
	"chart-insights/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeArchive) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return key, nil
}

type failingStore struct{}

func (failingStore) Create(context.Context, *models.Analysis) error {
	return errors.New("db down")
}

func (failingStore) ListBySession(context.Context, string, int, int) ([]*models.Analysis, error) {
	return nil, errors.New("db down")
}

type analysisFixture struct {
	svc       *AnalysisService
	providers map[string]*fakeProvider
	history   *repository.MemoryAnalysisRepository
	archive   *fakeArchive
}

func newAnalysisFixture(t *testing.T, order []string, keys map[string]string, fakes ...*fakeProvider) *analysisFixture {
	t.Helper()

	llm := config.LLMConfig{
		Order:       order,
		Providers:   map[string]config.ProviderConfig{},
		Timeout:     time.Second,
		Temperature: 0.3,
		MaxTokens:   700,
		SecretsFile: ".secrets.toml",
	}
	fx := &analysisFixture{
		providers: map[string]*fakeProvider{},
		history:   repository.NewMemoryAnalysisRepository(),
		archive:   &fakeArchive{},
	}

	registry := NewProviderRegistry(llm, zap.NewNop())
	for _, f := range fakes {
		f := f
		llm.Providers[f.name] = config.ProviderConfig{
			Name:   f.name,
			APIKey: keys[f.name],
			Model:  f.model,
			Models: []string{f.model, f.model + "-large"},
			Vision: f.vision,
		}
		fx.providers[f.name] = f
		registry.Register(f.name, func(context.Context, config.ProviderConfig, *zap.Logger) (Provider, error) {
			return f, nil
		})
	}
	t.Cleanup(func() { _ = registry.Close() })

	fx.svc = NewAnalysisService(registry, fx.history, fx.archive, nil, llm,
		config.TableConfig{MaxRows: 80, MaxChars: 9000, PreviewRows: 15}, zap.NewNop())
	return fx
}

func testSession(id string) *Session {
	return &Session{ID: id, Settings: Settings{Temperature: 0.5, MaxTokens: 400}, APIKeys: map[string]string{}}
}

func TestAnalyzeImageFallsBackToSecondary(t *testing.T) {
	fx := newAnalysisFixture(t, []string{"openai", "groq"},
		map[string]string{"openai": "sk", "groq": "gsk"},
		&fakeProvider{name: "openai", vision: true, model: "gpt-4o-mini", err: errors.New("boom")},
		&fakeProvider{name: "groq", vision: true, model: "llama", reply: "Upward trend."},
	)

	session := testSession("s1")
	session.Settings.Model = "gpt-4o-mini-large"

	res, err := fx.svc.AnalyzeImage(context.Background(), session, ImageInput{Data: []byte("png"), FileName: "chart.png"})
	require.NoError(t, err)

	assert.Equal(t, "Upward trend.", res.Insights)
	assert.Equal(t, "groq", res.Provider)
	assert.Equal(t, "llama", res.Model)
	require.Len(t, res.Attempts, 2)

	primaryCall := fx.providers["openai"].calls[0]
	assert.Equal(t, "gpt-4o-mini-large", primaryCall.Model)
	assert.Equal(t, 0.5, primaryCall.Temperature)
	assert.Equal(t, 400, primaryCall.MaxTokens)
	assert.Equal(t, BuildImagePrompt(), primaryCall.Prompt)
	require.NotNil(t, primaryCall.Image)
	assert.True(t, strings.HasPrefix(primaryCall.Image.DataURL, "data:image/png;base64,"))

	require.Len(t, fx.archive.keys, 1)
	assert.True(t, strings.HasPrefix(fx.archive.keys[0], "image/"))
	assert.Equal(t, fx.archive.keys[0], res.ObjectKey)

	history, err := fx.svc.ListAnalyses(context.Background(), "s1", 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.InputKindImage, history[0].Kind)
	assert.Equal(t, "groq", history[0].Provider)
}

func TestAnalyzeImageTooLargeSkipsProviders(t *testing.T) {
	primary := &fakeProvider{name: "openai", vision: true, reply: "x"}
	fx := newAnalysisFixture(t, []string{"openai"}, map[string]string{"openai": "sk"}, primary)

	big := make([]byte, MaxImageBytes+1)
	_, err := fx.svc.AnalyzeImage(context.Background(), nil, ImageInput{Data: big, FileName: "huge.png"})
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.True(t, IsInputError(err))
	assert.Zero(t, primary.callCount())
}

func TestAnalyzeImageRejectsUnsupportedTypes(t *testing.T) {
	primary := &fakeProvider{name: "openai", vision: true, reply: "x"}
	fx := newAnalysisFixture(t, []string{"openai"}, map[string]string{"openai": "sk"}, primary)

	_, err := fx.svc.AnalyzeImage(context.Background(), nil, ImageInput{Data: []byte("%PDF-1.7"), FileName: "report.pdf"})
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.True(t, IsInputError(err))
	assert.Zero(t, primary.callCount())
}

func TestAnalyzeSkipsProvidersWithoutCredentials(t *testing.T) {
	openai := &fakeProvider{name: "openai", vision: true, model: "gpt", reply: "from openai"}
	groq := &fakeProvider{name: "groq", vision: true, model: "llama", reply: "from groq"}
	fx := newAnalysisFixture(t, []string{"openai", "groq"}, map[string]string{"groq": "gsk"}, openai, groq)

	res, err := fx.svc.AnalyzeImage(context.Background(), nil, ImageInput{Data: []byte("png"), FileName: "c.png"})
	require.NoError(t, err)
	assert.Equal(t, "groq", res.Provider)
	assert.Len(t, res.Attempts, 1)
	assert.Zero(t, openai.callCount())
}

func TestAnalyzeUsesSessionKey(t *testing.T) {
	openai := &fakeProvider{name: "openai", vision: true, model: "gpt", reply: "ok"}
	fx := newAnalysisFixture(t, []string{"openai"}, nil, openai)

	_, err := fx.svc.AnalyzeImage(context.Background(), nil, ImageInput{Data: []byte("png"), FileName: "c.png"})
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.Equal(t, KindSetup, Classify(err))

	session := testSession("")
	session.APIKeys["openai"] = "sk-typed"
	res, err := fx.svc.AnalyzeImage(context.Background(), session, ImageInput{Data: []byte("png"), FileName: "c.png"})
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)

	// anonymous analyses are not kept
	history, err := fx.svc.ListAnalyses(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnalyzeImageWithoutVisionProvider(t *testing.T) {
	fx := newAnalysisFixture(t, []string{"gigachat"}, map[string]string{"gigachat": "k"},
		&fakeProvider{name: "gigachat", vision: false, model: "GigaChat", reply: "x"})

	_, err := fx.svc.AnalyzeImage(context.Background(), nil, ImageInput{Data: []byte("png"), FileName: "c.png"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestAnalyzeTable(t *testing.T) {
	textOnly := &fakeProvider{name: "gigachat", vision: false, model: "GigaChat", reply: "Revenue peaks in March."}
	fx := newAnalysisFixture(t, []string{"gigachat"}, map[string]string{"gigachat": "k"}, textOnly)

	res, err := fx.svc.AnalyzeTable(context.Background(), testSession("s2"), TableInput{Data: []byte(salesCSV), FileName: "sales.csv"})
	require.NoError(t, err)
	assert.Equal(t, "Revenue peaks in March.", res.Insights)

	require.Equal(t, 1, textOnly.callCount())
	call := textOnly.calls[0]
	assert.Nil(t, call.Image)
	assert.Contains(t, call.Prompt, "Here is the sample:")
	assert.Contains(t, call.Prompt, "revenue,units")
	assert.NotContains(t, call.Prompt, "region")

	require.Len(t, fx.archive.keys, 1)
	assert.True(t, strings.HasPrefix(fx.archive.keys[0], "table/"))
}

func TestAnalyzeTableBadFile(t *testing.T) {
	p := &fakeProvider{name: "openai", vision: true, reply: "x"}
	fx := newAnalysisFixture(t, []string{"openai"}, map[string]string{"openai": "sk"}, p)

	_, err := fx.svc.AnalyzeTable(context.Background(), nil, TableInput{Data: []byte("x"), FileName: "notes.txt"})
	var fileErr *FileReadError
	require.ErrorAs(t, err, &fileErr)
	assert.ErrorIs(t, err, ErrUnsupportedTable)
	assert.Zero(t, p.callCount())
}

func TestAnalyzeSideEffectFailuresDoNotFail(t *testing.T) {
	p := &fakeProvider{name: "openai", vision: true, model: "gpt", reply: "fine"}
	fx := newAnalysisFixture(t, []string{"openai"}, map[string]string{"openai": "sk"}, p)
	fx.svc.history = failingStore{}
	fx.svc.archive = &fakeArchive{err: errors.New("minio down")}

	res, err := fx.svc.AnalyzeImage(context.Background(), testSession("s3"), ImageInput{Data: []byte("png"), FileName: "c.png"})
	require.NoError(t, err)
	assert.Equal(t, "fine", res.Insights)
	assert.Empty(t, res.ObjectKey)
}

func TestAnalyzeAllProvidersFail(t *testing.T) {
	fx := newAnalysisFixture(t, []string{"openai", "groq"},
		map[string]string{"openai": "sk", "groq": "gsk"},
		&fakeProvider{name: "openai", vision: true, err: &StatusError{Provider: "openai", StatusCode: 429}},
		&fakeProvider{name: "groq", vision: true, err: &StatusError{Provider: "groq", StatusCode: 401}},
	)

	_, err := fx.svc.AnalyzeImage(context.Background(), nil, ImageInput{Data: []byte("png"), FileName: "c.png"})
	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, KindRateLimit, Classify(err))
	assert.Equal(t, msgRateLimit, FriendlyMessage(chainErr.First().Provider, err))
}

func TestPreviewAndPlotTable(t *testing.T) {
	fx := newAnalysisFixture(t, nil, nil)

	preview, err := fx.svc.PreviewTable(TableInput{Data: []byte(salesCSV), FileName: "sales.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"month", "region", "revenue", "units"}, preview.Columns)
	assert.Equal(t, []string{"revenue", "units"}, preview.NumericColumns)
	assert.Equal(t, preview.TotalRows, len(preview.Rows))

	png, err := fx.svc.PlotTable(TableInput{Data: []byte(salesCSV), FileName: "sales.csv"}, "units", "")
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	_, err = fx.svc.PlotTable(TableInput{Data: []byte(salesCSV), FileName: "sales.csv"}, "region", "")
	assert.True(t, IsInputError(err))
}

func TestProvidersStatus(t *testing.T) {
	fx := newAnalysisFixture(t, []string{"openai", "groq"}, map[string]string{"openai": "sk"},
		&fakeProvider{name: "openai", vision: true, model: "gpt"},
		&fakeProvider{name: "groq", vision: true, model: "llama"},
	)

	status := fx.svc.Providers(nil)
	require.Len(t, status, 2)
	assert.True(t, status[0].Primary)
	assert.True(t, status[0].Ready)
	assert.Equal(t, "OpenAI", status[0].Title)
	assert.False(t, status[1].Ready)

	session := testSession("s")
	session.APIKeys["groq"] = "typed"
	assert.True(t, fx.svc.Providers(session)[1].Ready)

	assert.Contains(t, fx.svc.SetupHelp(), "GROQ_API_KEY")
}
