// Command context7-mcp serves the Context7 documentation tools over MCP,
// either on stdio or on HTTP (streamable /mcp plus legacy /sse).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggoodman/context7-mcp-go/internal/config"
	"github.com/ggoodman/context7-mcp-go/internal/context7"
	"github.com/ggoodman/context7-mcp-go/internal/logctx"
	"github.com/ggoodman/context7-mcp-go/internal/policy"
	"github.com/ggoodman/context7-mcp-go/internal/router"
	"github.com/ggoodman/context7-mcp-go/internal/tools"
	"github.com/ggoodman/context7-mcp-go/stdio"
	"github.com/spf13/cobra"
)

const (
	transportFlag = "transport"
	portFlag      = "port"
	apiKeyFlag    = "api-key"
	acceptFlag    = "accept"
	rejectFlag    = "reject"
	logLevelFlag  = "log-level"

	stdioStartupMessage = "Context7 Documentation MCP Server running on stdio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(func(ctx context.Context, flags config.Flags) error {
		return run(ctx, flags, os.Stdin, os.Stdout, os.Stderr)
	})
	if err := cmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Fatal error in main():", err)
		stop()
		os.Exit(1)
	}
}

// newRootCommand parses flags into config.Flags and hands them to runFn.
func newRootCommand(runFn func(context.Context, config.Flags) error) *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:           "context7-mcp",
		Short:         "Context7 documentation MCP server",
		Long:          "Serves the resolve-library-id and get-library-docs tools backed by the Context7 API.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.TransportSet = cmd.Flags().Changed(transportFlag)
			return runFn(cmd.Context(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.Transport, transportFlag, string(config.TransportStdio), "transport type (stdio, http or sse)")
	f.StringVar(&flags.Port, portFlag, "", fmt.Sprintf("port for the HTTP transport (default %d)", config.DefaultPort))
	f.StringVar(&flags.APIKey, apiKeyFlag, "", "Context7 API key (overrides CONTEXT7_API_KEY)")
	f.StringVar(&flags.Accept, acceptFlag, "", "library patterns to accept, comma or space separated")
	f.StringVar(&flags.Reject, rejectFlag, "", "library patterns to reject, comma or space separated")
	f.StringVar(&flags.LogLevel, logLevelFlag, "", "log level (debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, flags config.Flags, stdin io.Reader, stdout, stderr io.Writer) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(env, flags)
	if err != nil {
		return err
	}

	log := logctx.NewLogger(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	for _, w := range cfg.Warnings {
		log.WarnContext(ctx, "config.warning", slog.String("msg", w))
	}

	upstream, err := context7.New(cfg.Upstream, context7.WithLogger(log))
	if err != nil {
		return fmt.Errorf("context7 client: %w", err)
	}
	filter, err := policy.NewFilter(cfg.Accept, cfg.Reject)
	if err != nil {
		return fmt.Errorf("library filters: %w", err)
	}
	if filter.Active() {
		log.InfoContext(ctx, "policy.active", slog.String("filters", filter.Describe()))
	}

	server := tools.NewServer(tools.Config{
		Upstream:      upstream,
		Filter:        filter,
		MinimumTokens: cfg.MinimumTokens,
		Logger:        log,
	})

	if !cfg.Transport.Serves() {
		h := stdio.NewHandler(server, stdio.WithIO(stdin, stdout), stdio.WithLogger(log))
		fmt.Fprintln(stderr, stdioStartupMessage)
		return h.Serve(ctx)
	}

	rt, err := router.New(router.Options{
		Server:         server,
		Logger:         log,
		RequestContext: router.ForwardAPIKey,
	})
	if err != nil {
		return err
	}
	return router.Run(ctx, rt, cfg.Port, stderr)
}
