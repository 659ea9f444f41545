package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragqa/internal/config"
	"ragqa/internal/httpapi"
	"ragqa/internal/logging"
	"ragqa/internal/service"
	"ragqa/internal/tui"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, config.ErrMissingCredentials) {
			fmt.Fprintln(os.Stderr, "Set them in the environment or in a .env file.")
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		file    string
	)
	root := &cobra.Command{
		Use:           "ragqa",
		Short:         "Ask questions about a PDF or text document",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			logFile := cfg.Log.File
			if logFile == "" {
				logFile = defaultLogFile()
			}
			logger, err := logging.New(cfg.Log.Level, logFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			m := tui.New(a.svc, service.NewSession(), file)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragqa/config.yaml)")
	root.Flags().StringVar(&file, "file", "", "Document to load on startup")

	root.AddCommand(newIngestCmd(&cfgPath), newAskCmd(&cfgPath), newServeCmd(&cfgPath))
	return root
}

func newIngestCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Extract, chunk and index documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*cfgPath, func(a *app) error {
				return ingestFiles(cmd.Context(), a.svc, cmd.OutOrStdout(), args)
			})
		},
	}
}

func newAskCmd(cfgPath *string) *cobra.Command {
	var showContext bool
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*cfgPath, func(a *app) error {
				printAnswer(cmd.OutOrStdout(), a.svc.Answer(cmd.Context(), strings.Join(args, " ")), showContext)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showContext, "show-context", false, "Print the retrieved context after the answer")
	return cmd
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*cfgPath, func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				srv := httpapi.NewServer(a.svc, httpapi.Options{
					MaxUploadBytes: int64(a.cfg.Server.MaxUploadMB) << 20,
					SessionTTL:     time.Duration(a.cfg.Server.SessionTTLSecs) * time.Second,
					MaxSessions:    a.cfg.Server.MaxSessions,
				}, a.logger)
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return srv.Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	return cmd
}

// withApp loads config, logs to stderr (or log.file) and runs fn with the
// assembled components.
func withApp(cfgPath string, fn func(*app) error) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close index", zap.Error(err))
		}
	}()
	return fn(a)
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "ragqa", "ragqa.log")
}

type ingester interface {
	Ingest(ctx context.Context, sess *service.Session, data []byte, filename string) (service.IngestResult, error)
}

// ingestFiles ingests every path within one session and reports each result.
// All files are attempted; the first failure is returned.
func ingestFiles(ctx context.Context, svc ingester, out io.Writer, paths []string) error {
	sess := service.NewSession()
	var firstErr error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err == nil {
			var res service.IngestResult
			res, err = svc.Ingest(ctx, sess, data, filepath.Base(p))
			if err == nil {
				printIngest(out, p, res)
				continue
			}
		}
		fmt.Fprintf(out, "%s: error: %v\n", p, err)
		if firstErr == nil {
			firstErr = fmt.Errorf("ingest %s: %w", p, err)
		}
	}
	return firstErr
}

func printIngest(out io.Writer, path string, res service.IngestResult) {
	if res.Skipped {
		fmt.Fprintf(out, "%s: already ingested (%d chunks)\n", path, res.ChunkCount)
		return
	}
	fmt.Fprintf(out, "%s: %d chunks, fingerprint %s\n", path, res.ChunkCount, res.Fingerprint)
	if res.Summary != "" {
		fmt.Fprintf(out, "  summary: %s\n", res.Summary)
	}
}

func printAnswer(out io.Writer, a service.Answer, showContext bool) {
	fmt.Fprintln(out, a.Text)
	if !showContext || a.Context == "" {
		return
	}
	fmt.Fprintln(out, "\n--- context ---")
	fmt.Fprintln(out, a.Context)
}
