package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geoprofiles/internal/output"
	"github.com/sells-group/geoprofiles/internal/roster"
	"github.com/sells-group/geoprofiles/internal/server"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a run's output documents over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if serveDir != "" {
			cfg.Output.Dir = serveDir
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		docs, err := output.Load(cfg.Output.Dir)
		if err != nil {
			return eris.Wrap(err, "load output documents")
		}

		var opts []server.Option
		if cfg.Input.URLs != "" {
			urls, err := roster.ReadURLs(ctx, cfg.Input.URLs)
			if err != nil {
				return eris.Wrap(err, "load expert urls")
			}
			opts = append(opts, server.WithURLs(urls))
		}

		return server.New(docs, cfg.Server.AllowedOrigins, opts...).ListenAndServe(ctx, server.Addr(cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "output directory to serve (overrides output.dir)")
	rootCmd.AddCommand(serveCmd)
}
