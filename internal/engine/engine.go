package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"

	"modelwrap/internal/config"
	"modelwrap/internal/logging"
	"modelwrap/internal/reqlog"
	"modelwrap/internal/stream"
	"modelwrap/internal/transport"
)

// ShutdownTimeout bounds how long in-flight requests may drain.
const ShutdownTimeout = 10 * time.Second

type Engine struct {
	cfg config.Config

	http    *http.Server
	grpc    *transport.Server
	runner  *stream.Runner
	reqlog  *reqlog.Logger
	metrics *http.Server

	httpLis, grpcLis net.Listener
	root             net.Listener // set in single-port mode
	mux              cmux.CMux

	tracingShutdown func(context.Context) error
}

// HTTPAddr is the bound REST address.
func (e *Engine) HTTPAddr() net.Addr { return e.httpLis.Addr() }

// GRPCAddr is the bound gRPC address.
func (e *Engine) GRPCAddr() net.Addr { return e.grpcLis.Addr() }

// Run serves until ctx ends or a component fails, then shuts everything down.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.runner != nil {
		if err := e.runner.Start(gctx); err != nil {
			return err
		}
		g.Go(e.runner.Wait)
	}

	g.Go(func() error {
		if err := e.http.Serve(e.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error { return e.grpc.Serve(e.grpcLis) })
	if e.mux != nil {
		g.Go(func() error {
			if err := e.mux.Serve(); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	logging.L().Info("engine started", "http", e.HTTPAddr().String(), "grpc", e.GRPCAddr().String(), "stream", e.runner != nil)

	g.Go(func() error {
		<-gctx.Done()
		e.shutdown()
		return nil
	})
	return g.Wait()
}

func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := e.http.Shutdown(ctx); err != nil {
		logging.L().Warn("engine: http shutdown", "err", err)
	}
	e.grpc.Stop(ctx)
	if e.root != nil {
		_ = e.root.Close()
	}
	e.release(ctx)
	logging.L().Info("engine stopped")
}
