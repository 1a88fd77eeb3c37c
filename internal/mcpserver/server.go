// Package mcpserver exposes the backtester as MCP tools.
package mcpserver

import (
	"context"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/service"
)

const defaultRequestTimeout = 30 * time.Second

type ServerConfig struct {
	RequestTimeout time.Duration

	// Defaults supplies the symbol, balance and strategy used when a
	// call leaves them out.
	Defaults config.Config

	// DataDir is prepended to relative candles_path values.
	DataDir string

	Version string
	Logger  *zap.Logger
}

func NewServer(bt *service.Backtester, cfg ServerConfig) *sdkmcp.Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "mcp-trader",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: "Backtest indicator strategies on OHLCV candles, compute indicators and validate strategy documents.",
	})

	srv.AddReceivingMiddleware(timeoutMiddleware(cfg.RequestTimeout))
	srv.AddReceivingMiddleware(loggingMiddleware(cfg.Logger))

	registerTools(srv, &tools{bt: bt, cfg: cfg})
	return srv
}

// RunStdio serves srv over stdin/stdout until ctx is done.
func RunStdio(ctx context.Context, srv *sdkmcp.Server) error {
	return srv.Run(ctx, &sdkmcp.StdioTransport{})
}

func timeoutMiddleware(timeout time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

func loggingMiddleware(log *zap.Logger) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			fields := []zap.Field{zap.String("method", method)}
			if call, ok := req.(*sdkmcp.CallToolRequest); ok {
				fields = append(fields, zap.String("tool", call.Params.Name))
			}
			start := time.Now()
			res, err := next(ctx, method, req)
			fields = append(fields, zap.Duration("took", time.Since(start)))
			if err != nil {
				log.Warn("mcp request failed", append(fields, zap.Error(err))...)
			} else {
				log.Debug("mcp request", fields...)
			}
			return res, err
		}
	}
}
