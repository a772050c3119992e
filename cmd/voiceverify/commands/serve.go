package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcvoice/voiceverify/internal/httpapi"
	"github.com/arcvoice/voiceverify/pkg/audioload"
	"github.com/arcvoice/voiceverify/pkg/embedding"
	"github.com/arcvoice/voiceverify/pkg/verifier"
)

var (
	flagAddr   string
	flagXORKey string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voiceprint verification HTTP service",
	Long: `Run the voiceprint verification HTTP service.

Example:
  voiceverify serve --addr :8080 --db voiceprints.db`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&flagXORKey, "xor-key", "", "repeating-XOR transport de-obfuscation key (empty disables it)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	d, err := wire(ctx, flagDBPath)
	if err != nil {
		return err
	}
	defer d.records.Close()
	defer d.extractor.Close()

	if err := d.cohort.EnsureCollection(ctx, d.cfg.EnrolledCollection, embedding.Dimension); err != nil {
		return err
	}
	if err := d.cohort.EnsureCollection(ctx, d.cfg.CohortCollection, embedding.Dimension); err != nil {
		return err
	}

	v := verifier.New(newVerifierConfig(d.cfg), audioload.Load, d.extractor, d.scorer, d.cohort, d.records, nil)
	server := httpapi.NewServer(v, d.cohort, d.cfg.EnrolledCollection, d.cfg.CohortCollection, httpapi.Options{
		Enabled: d.cfg.VoiceprintEnabled,
		XORKey:  []byte(flagXORKey),
		Logger:  logger,
	})

	httpServer := &http.Server{
		Addr:              flagAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", flagAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
