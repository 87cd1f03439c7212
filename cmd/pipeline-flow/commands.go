package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vilaca/pipeline-flow/internal/config"
	"github.com/vilaca/pipeline-flow/internal/dashboard"
	"github.com/vilaca/pipeline-flow/internal/metrics"
	"github.com/vilaca/pipeline-flow/internal/service"
)

var (
	warningTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#ffb86c")).
				Bold(true)

	warningItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#f1fa8c")).
				PaddingLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5555")).
			Bold(true)
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pipeline-flow",
		Short: "Render a branch pipeline as a Mermaid flowchart",
		Long: `Classify the long-lived branches of a repository, attach live pull request
and CI status from its hosting provider, and render the pipeline as a
Mermaid flowchart.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("repo", "", "repository directory (default $PIPELINE_REPO_DIR or .)")
	root.PersistentFlags().String("remote", "", "remote URL (default $PIPELINE_REMOTE_URL or the origin remote)")

	root.AddCommand(newRenderCommand(), newServeCommand())
	return root
}

// loadConfig reads the environment and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if repo, _ := cmd.Flags().GetString("repo"); repo != "" {
		cfg.RepoDir = repo
	}
	if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
		cfg.RemoteURL = remote
	}
	return cfg, nil
}

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Build the pipeline once and print the diagram",
		RunE:  runRender,
	}
	cmd.Flags().Bool("major-only", false, "only main and major branches with their deployment targets")
	cmd.Flags().Bool("wrap", false, "wrap the diagram in a ```mermaid fence")
	cmd.Flags().Bool("no-fetch", false, "skip the hosting provider; statuses stay unknown")
	cmd.Flags().Bool("json", false, "print the full result as JSON")
	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	majorOnly, _ := cmd.Flags().GetBool("major-only")
	wrap, _ := cmd.Flags().GetBool("wrap")
	noFetch, _ := cmd.Flags().GetBool("no-fetch")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a := buildApp(ctx, cfg, !noFetch, nil, cmd.ErrOrStderr())
	result := a.service.Build(ctx, service.BuildOptions{Fetch: !noFetch, Wrap: wrap})

	out := cmd.OutOrStdout()
	if asJSON {
		if err := dashboard.NewJSONRenderer(true).RenderResult(out, result); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	} else {
		text := result.DiagramText
		if majorOnly {
			text = result.DiagramTextMajorOnly
		}
		if _, err := io.WriteString(out, text); err != nil {
			return fmt.Errorf("writing diagram: %w", err)
		}
		printWarnings(cmd.ErrOrStderr(), result.Warnings)
	}

	if result.Failed {
		return errors.New("pipeline build failed")
	}
	return nil
}

func printWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w, warningTitleStyle.Render(fmt.Sprintf("%d warning(s)", len(warnings))))
	for _, warning := range warnings {
		fmt.Fprintln(w, warningItemStyle.Render("- "+warning))
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP and keep it up to date",
		Long: `Start an HTTP server that rebuilds the pipeline periodically and whenever
the configuration changes.

Endpoints:
  GET /api/health               Health check
  GET /api/pipeline             Full build result (JSON)
  GET /api/pipeline/diagram     Diagram text, ?major=1 for major branches only
  GET /api/pipeline/warnings    Configuration warnings (JSON)
  GET /metrics                  Prometheus metrics`,
		RunE: runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "port to listen on (default $PORT or 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	a := buildApp(ctx, cfg, true, collector, os.Stderr)

	var cache *service.FileCache
	if cfg.CacheFile != "" {
		cache = service.NewFileCache(cfg.CacheFile, a.logger)
	}
	refresher := service.NewBackgroundRefresher(a.service, service.BuildOptions{Fetch: true},
		cfg.RefreshInterval, a.source.WatchDirs(), cache, a.logger)
	refresher.Start()
	defer refresher.Stop()

	handler := dashboard.NewHandler(dashboard.HandlerConfig{
		Renderer: dashboard.NewJSONRenderer(false),
		Logger:   a.logger,
		Results:  refresher,
		Metrics:  collector.Handler(),
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Logger().Info().
			Str("addr", server.Addr).
			Str("repo", cfg.RepoDir).
			Dur("refresh", cfg.RefreshInterval).
			Msg("Starting pipeline server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("server failed: "+err.Error()))
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Printf("Shutting down pipeline server")
	return server.Shutdown(shutdownCtx)
}
