package cli

import (
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mgpai22/ttmltr/internal/pipeline"
	"github.com/mgpai22/ttmltr/internal/server"
	"github.com/mgpai22/ttmltr/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve TTML translation over HTTP",
	Long: `Start an HTTP server that translates TTML documents posted to it.

Endpoints:
  GET  /healthz
  POST /v1/translate?lang=es[&name=episode.ttml]
  POST /v1/inspect

With --store, requests that carry a name are also written to the output
folder and, unless --no-upload is given, to Cloud Storage.

Examples:
  ttmltr serve --addr :8080 --lang-default es
  ttmltr serve -e openai --origins https://example.com --store --no-upload`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("lang-default", "", "Target language when a request has no ?lang")
	serveCmd.Flags().String("origins", "", "Allowed CORS origins, comma separated (default: any)")
	serveCmd.Flags().Int64("max-body", server.DefaultMaxBodyBytes, "Maximum request body in bytes")
	serveCmd.Flags().Bool("store", false, "Keep named results through the output sink")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, commandDefaults{})
	if err != nil {
		return err
	}
	if err := cfg.ValidateEngine(); err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	langDefault, _ := cmd.Flags().GetString("lang-default")
	origins, _ := cmd.Flags().GetString("origins")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	store, _ := cmd.Flags().GetBool("store")

	ctx, cancel := signalContext()
	defer cancel()

	srvLogger := logger.With("run", uuid.New().String(), "engine", cfg.Label())

	var cleanup closers
	defer func() {
		if err := cleanup.Close(); err != nil {
			srvLogger.Warnw("Cleanup failed", "error", err)
		}
	}()

	tr, err := buildTranslator(ctx, cfg, srvLogger, &cleanup)
	if err != nil {
		return err
	}

	var sink storage.Sink
	if store {
		sink, err = buildSink(ctx, cfg, &cleanup)
		if err != nil {
			return err
		}
	}

	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	srv := server.New(pipeline.New(tr, srvLogger), server.Config{
		Label:           cfg.Label(),
		DefaultLanguage: strings.TrimSpace(langDefault),
		MaxBodyBytes:    maxBody,
		AllowedOrigins:  allowed,
		Sink:            sink,
	}, srvLogger)

	err = server.ListenAndServe(ctx, addr, srv, srvLogger)

	st := tr.Stats()
	srvLogger.Infow("Backend activity",
		"calls", st.Calls,
		"bisections", st.Bisections,
		"single_line", st.SingleLine,
		"pass_through", st.PassThrough,
	)
	return err
}
