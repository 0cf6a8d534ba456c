package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"chart-insights/internal/service"
	"chart-insights/pkg/config"
	"chart-insights/pkg/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	okText   = color.New(color.FgGreen).SprintFunc()
	failText = color.New(color.FgRed).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
)

// cliOptions are the settings flags shared by every command.
type cliOptions struct {
	model       string
	temperature float64
	maxTokens   int
	logLevel    string

	// set by the root command's PersistentPreRunE
	cfg *config.Config
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "chart-insights-cli",
		Short: "Explain charts and tables with an LLM provider chain",
		Long: `Send a chart image or a CSV/Excel table to the configured LLM providers
and print the insights. Providers are tried in LLM_PROVIDERS order until one
answers. Keys come from the environment, .env or the secrets file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("temperature") {
				opts.temperature = cfg.LLM.Temperature
			}
			if !cmd.Flags().Changed("max-tokens") {
				opts.maxTokens = cfg.LLM.MaxTokens
			}
			opts.cfg = cfg
			return logger.InitConsole(opts.logLevel)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.model, "model", "", "model for the first provider (must be one of its models)")
	flags.Float64Var(&opts.temperature, "temperature", 0, "sampling temperature, 0 to 1 (default from LLM_TEMPERATURE)")
	flags.IntVar(&opts.maxTokens, "max-tokens", 0, "answer length limit, 128 to 2000 (default from LLM_MAX_TOKENS)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newImageCmd(opts),
		newTableCmd(opts),
		newPreviewCmd(opts),
		newPlotCmd(opts),
		newSetupCmd(opts),
	)
	return root
}

func newImageCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "image <file>",
		Short: "Analyze a chart image (PNG/JPEG)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			return runAnalysis(cmd, opts, "Error analyzing image: ", func(ctx context.Context, svc *service.AnalysisService, s *service.Session) (*service.AnalysisResult, error) {
				return svc.AnalyzeImage(ctx, s, service.ImageInput{Data: data, FileName: args[0]})
			})
		},
	}
}

func newTableCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "table <file>",
		Short: "Analyze a CSV or Excel table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read table: %w", err)
			}
			return runAnalysis(cmd, opts, "Error analyzing data: ", func(ctx context.Context, svc *service.AnalysisService, s *service.Session) (*service.AnalysisResult, error) {
				return svc.AnalyzeTable(ctx, s, service.TableInput{Data: data, FileName: args[0]})
			})
		},
	}
}

func newPreviewCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <file>",
		Short: "Show the first rows and numeric columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read table: %w", err)
			}

			svc, closeFn := newAnalysisService(opts.cfg)
			defer closeFn()

			preview, err := svc.PreviewTable(service.TableInput{Data: data, FileName: args[0]})
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), preview)
			return nil
		},
	}
}

func newPlotCmd(opts *cliOptions) *cobra.Command {
	var yCol, xCol, output string

	cmd := &cobra.Command{
		Use:   "plot <file>",
		Short: "Draw a numeric column as a PNG line chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read table: %w", err)
			}

			svc, closeFn := newAnalysisService(opts.cfg)
			defer closeFn()

			png, err := svc.PlotTable(service.TableInput{Data: data, FileName: args[0]}, yCol, xCol)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return fmt.Errorf("failed to write plot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okText("wrote"), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&yCol, "y", "y", "", "numeric column for the y axis")
	cmd.Flags().StringVarP(&xCol, "x", "x", "", "column for the x axis (default: row index)")
	cmd.Flags().StringVarP(&output, "output", "o", "plot.png", "output file")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}

func newSetupCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Print how to configure provider API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn := newAnalysisService(opts.cfg)
			defer closeFn()

			out := cmd.OutOrStdout()
			for _, p := range svc.Providers(nil) {
				state := failText("no key")
				if p.Ready {
					state = okText("ready")
				}
				fmt.Fprintf(out, "%-10s %-8s %s\n", p.Name, state, dimText(p.Model))
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, svc.SetupHelp())
			return nil
		},
	}
}

type analyzeFunc func(ctx context.Context, svc *service.AnalysisService, session *service.Session) (*service.AnalysisResult, error)

// runAnalysis validates the settings flags, runs fn and prints the answer
// with a line per provider attempt.
func runAnalysis(cmd *cobra.Command, opts *cliOptions, prefix string, fn analyzeFunc) error {
	session, err := opts.session()
	if err != nil {
		return err
	}

	svc, closeFn := newAnalysisService(opts.cfg)
	defer closeFn()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	result, err := fn(ctx, svc, session)
	if err != nil {
		var chainErr *service.ChainError
		if errors.As(err, &chainErr) {
			printAttempts(errOut, chainErr.Attempts)
		}
		kind, msg := service.Explain(err)
		if service.IsInputError(err) || errors.Is(err, service.ErrNoProvider) {
			msg = err.Error()
		}
		fmt.Fprintln(errOut, failText(prefix+msg))
		if service.NeedsSetupHelp(kind) {
			fmt.Fprintln(errOut)
			fmt.Fprint(errOut, svc.SetupHelp())
		}
		return fmt.Errorf("analysis failed (%s)", kind)
	}

	printAttempts(errOut, result.Attempts)
	fmt.Fprintln(out, strings.TrimSpace(result.Insights))
	return nil
}

// session validates the settings flags the way the server validates session
// settings. The session has no ID, so nothing is kept in history.
func (o *cliOptions) session() (*service.Session, error) {
	settings := service.Settings{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	if err := service.ValidateSettings(settings, o.cfg.LLM.AllowedModels()); err != nil {
		return nil, err
	}
	return &service.Session{Settings: settings, APIKeys: map[string]string{}}, nil
}

func newAnalysisService(cfg *config.Config) (*service.AnalysisService, func()) {
	log := logger.Get()
	registry := service.NewProviderRegistry(cfg.LLM, log)
	svc := service.NewAnalysisService(registry, nil, nil, nil, cfg.LLM, cfg.Table, log)
	return svc, func() {
		if err := registry.Close(); err != nil {
			log.Debug("Failed to close providers", zap.Error(err))
		}
	}
}

func printAttempts(w io.Writer, attempts []service.Attempt) {
	for _, a := range attempts {
		if a.Error == "" {
			fmt.Fprintf(w, "%s %s (%s) %s\n", okText("✓"), a.Provider, a.Model, dimText(fmt.Sprintf("%dms", a.DurationMS)))
			continue
		}
		fmt.Fprintf(w, "%s %s (%s) %s: %s\n", failText("✗"), a.Provider, a.Model, a.Kind, a.Error)
	}
}

func printPreview(w io.Writer, p *service.TablePreview) {
	fmt.Fprintf(w, "%d rows, columns: %s\n", p.TotalRows, strings.Join(p.Columns, ", "))
	if len(p.NumericColumns) > 0 {
		fmt.Fprintf(w, "numeric: %s\n", okText(strings.Join(p.NumericColumns, ", ")))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(p.Columns, "\t"))
	for _, row := range p.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}
