// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

// ssext-conformance runs the fixture plugin as a standalone gRPC
// server for the protocol conformance suite.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fieldray/ssext/conformance"
	"github.com/fieldray/ssext/ssext"
	ssextotel "github.com/fieldray/ssext/ssext/otel"

	// Registers the zstd message compressor with gRPC.
	_ "github.com/fieldray/ssext/ssext/encoding/zstd"
)

type config struct {
	Listen         string `mapstructure:"listen"`
	PluginID       string `mapstructure:"plugin_id"`
	PluginVersion  string `mapstructure:"plugin_version"`
	AllowScript    bool   `mapstructure:"allow_script"`
	MaxBundleRows  int    `mapstructure:"max_bundle_rows"`
	MaxBundleBytes int    `mapstructure:"max_bundle_bytes"`
	LogLevel       string `mapstructure:"log_level"`
	Telemetry      bool   `mapstructure:"telemetry"`
}

func main() {
	var cfgFile string
	cfg := config{
		Listen:        "127.0.0.1:50051",
		PluginID:      "ssext-conformance",
		PluginVersion: "1.0.0",
		AllowScript:   true,
		LogLevel:      "info",
	}

	root := &cobra.Command{
		Use:          "ssext-conformance",
		Short:        "Conformance fixture plugin for the ssext protocol",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				return nil
			}
			v := viper.New()
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config: %w", err)
			}
			if err := v.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("parsing config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.Flags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	root.Flags().StringVar(&cfg.Listen, "listen", cfg.Listen, "listen address")
	root.Flags().StringVar(&cfg.PluginID, "plugin-id", cfg.PluginID, "plugin identifier")
	root.Flags().StringVar(&cfg.PluginVersion, "plugin-version", cfg.PluginVersion, "plugin version string")
	root.Flags().BoolVar(&cfg.AllowScript, "allow-script", cfg.AllowScript, "advertise and serve script evaluation")
	root.Flags().IntVar(&cfg.MaxBundleRows, "max-bundle-rows", 0, "output bundle row limit (0 = default)")
	root.Flags().IntVar(&cfg.MaxBundleBytes, "max-bundle-bytes", 0, "output bundle byte limit (0 = default)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&cfg.Telemetry, "telemetry", false, "emit traces and metrics to stdout")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("bad log level %q: %w", cfg.LogLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	reg := ssext.NewRegistry(cfg.PluginID, cfg.PluginVersion)
	conformance.RegisterFunctions(reg)
	if cfg.AllowScript {
		if err := reg.EnableScript(); err != nil {
			return err
		}
	}

	opts := []ssext.Option{
		ssext.WithLogger(logger),
		ssext.WithBundleConfig(ssext.BundleConfig{
			MaxBundleRows:  cfg.MaxBundleRows,
			MaxBundleBytes: cfg.MaxBundleBytes,
		}),
	}
	if cfg.AllowScript {
		opts = append(opts, ssext.WithScriptRunner(conformance.EchoRunner{}))
	}

	if cfg.Telemetry {
		shutdown, err := setupTelemetry(ctx)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
		opts = append(opts, ssext.WithDispatchHook(ssextotel.NewHook(ssextotel.DefaultConfig())))
	}

	srv := ssext.NewServer(reg, opts...)

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}

	gs := srv.NewGRPCServer()
	logger.Info("serving", "addr", lis.Addr().String(), "plugin", cfg.PluginID, "allow_script", cfg.AllowScript)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	return gs.Serve(lis)
}

// setupTelemetry wires stdout exporters into the global OTel SDK.
// The conformance harness parses the emitted JSON to verify spans.
func setupTelemetry(ctx context.Context) (func(context.Context) error, error) {
	traceExp, err := stdouttrace.New()
	if err != nil {
		return nil, err
	}
	metricExp, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}
