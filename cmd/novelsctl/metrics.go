package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/zxckotee/novels-sub001/metrics/export/otel"
	"github.com/zxckotee/novels-sub001/metrics/export/prometheus"
)

func newMetricsCommand(a *app) *cobra.Command {
	var (
		format string
		listen string
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print or serve this process's session metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			labels := promclient.Labels{"instance_id": c.ID()}

			if listen != "" {
				h, err := prometheus.Handler(c, labels)
				if err != nil {
					return err
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", h)
				srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-cmd.Context().Done()
					_ = srv.Close()
				}()
				a.logger.Info("serving metrics", zap.String("addr", listen))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}

			switch format {
			case "prometheus":
				reg := promclient.NewRegistry()
				if err := reg.Register(prometheus.NewCollector(c, labels)); err != nil {
					return err
				}
				families, err := reg.Gather()
				if err != nil {
					return err
				}
				enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.NewFormat(expfmt.TypeTextPlain))
				for _, mf := range families {
					if err := enc.Encode(mf); err != nil {
						return err
					}
				}
				return nil

			case "otel":
				reader := sdkmetric.NewManualReader()
				provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
				defer func() { _ = provider.Shutdown(cmd.Context()) }()

				exp, err := otel.NewExporter(provider.Meter("novelsctl"), c)
				if err != nil {
					return err
				}
				defer exp.Close()

				var rm metricdata.ResourceMetrics
				if err := reader.Collect(cmd.Context(), &rm); err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rm.ScopeMetrics)

			default:
				return fmt.Errorf("unknown format %q (want prometheus or otel)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "prometheus", "Output format: prometheus or otel")
	cmd.Flags().StringVar(&listen, "listen", "", "Serve /metrics on this address instead of printing")
	return cmd
}
