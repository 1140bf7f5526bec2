// cmd/issuer/batch.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"narratives-mint/internal/application/usecase"
	issuance "narratives-mint/internal/domain/issuance"
)

type batchLine struct {
	Index   int          `json:"index"`
	Receipt *receiptView `json:"receipt,omitempty"`
	Kind    string       `json:"kind,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		file        string
		concurrency int
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Issue every asset listed in a JSON requests file.",
		Long:  `Each request is its own transaction. A failed request does not stop the others.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inputs, err := loadRequestFile(file)
			if err != nil {
				return err
			}
			if concurrency > 0 {
				a.cfg.Issuance.BatchConcurrency = concurrency
			}
			if metricsAddr != "" {
				a.cfg.Metrics.Addr = metricsAddr
			}

			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			if a.cfg.Metrics.Addr != "" {
				stop := serveMetrics(a.cfg.Metrics.Addr, promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}), a.logger)
				defer stop()
			}

			payer, err := c.FeePayer(ctx)
			if err != nil {
				return fmt.Errorf("load fee payer: %w", err)
			}
			auth, err := c.MintAuthority(ctx)
			if err != nil {
				return err
			}
			reqs := make([]issuance.Request, len(inputs))
			for i, s := range inputs {
				if reqs[i], err = s.toRequest(payer, auth); err != nil {
					return fmt.Errorf("request %d: %w", i, err)
				}
			}

			results := c.Issue.IssueBatch(ctx, reqs)

			failed := 0
			out := make([]batchLine, len(results))
			for i, r := range results {
				line := batchLine{Index: r.Index}
				if r.Err == nil || errors.Is(r.Err, usecase.ErrPostConfirmation) {
					v := newReceiptView(r.Receipt)
					line.Receipt = &v
				}
				if r.Err != nil {
					line.Kind = string(issuance.KindOf(r.Err))
					line.Error = r.Err.Error()
					if line.Receipt == nil {
						failed++
					}
				}
				out[i] = line
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d issuances failed", failed, len(results))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON array of requests")
	f.IntVar(&concurrency, "concurrency", 0, "overrides issuance.batch_concurrency")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address while the batch runs")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// serveMetrics exposes handler on addr/metrics until the returned func is called.
func serveMetrics(addr string, handler http.Handler, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("[issuer] metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("[issuer] metrics server stopped", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
