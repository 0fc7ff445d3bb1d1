package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"tgstate/internal/authd"
	"tgstate/internal/logging"
	"tgstate/internal/metrics"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		listen     string
		code       string
		users      map[string]string
		autoAccept bool
		logLevel   string
		logFormat  string
	)
	cmd := &cobra.Command{
		Use:          "authd",
		Short:        "In-memory authorization server for tgstate development",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New(logging.Config{Level: logLevel, Format: logFormat, Output: cmd.ErrOrStderr()})

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := authd.New(authd.Config{Code: code, Users: users, AutoAccept: autoAccept}, log, metrics.NewServer(reg))

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(reg))
			mux.Handle("/", srv.Handler())

			log.Info(ctx, "authd listening", "addr", listen, "users", len(users))
			err := authd.Serve(ctx, listen, mux)
			log.Info(context.WithoutCancel(ctx), "authd stopped")
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&listen, "listen", ":8080", "listen address")
	f.StringVar(&code, "code", authd.DefaultCode, "confirmation code accepted for every phone")
	f.StringToStringVar(&users, "user", nil, "pre-registered phone=name pairs")
	f.BoolVar(&autoAccept, "auto-accept", true, "peers accept secret chats as soon as they are requested")
	f.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	f.StringVar(&logFormat, "log-format", "text", "text or json")
	return cmd
}
