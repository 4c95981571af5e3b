package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soheilhy/cmux"

	"modelwrap/internal/builtin"
	"modelwrap/internal/config"
	"modelwrap/internal/logging"
	"modelwrap/internal/reqlog"
	"modelwrap/internal/rest"
	"modelwrap/internal/stream"
	"modelwrap/internal/telemetry"
	"modelwrap/internal/transform"
	"modelwrap/internal/transport"
	"modelwrap/sink"
	_ "modelwrap/sink/kafka"
	"modelwrap/sink/stdout"
)

// Bootstrap builds every component for cfg around m and opens the
// listeners. A nil m loads the builtin model from cfg.Model.File, or serves
// the identity transform when no file is configured.
func Bootstrap(ctx context.Context, cfg config.Config, m any) (*Engine, error) {
	e, err := build(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	if err := e.listen(); err != nil {
		e.release(context.Background())
		return nil, err
	}
	return e, nil
}

func build(ctx context.Context, cfg config.Config, m any) (*Engine, error) {
	logging.Configure(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	e := &Engine{cfg: cfg}

	// 1. tracing
	shutdown, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		return nil, err
	}
	e.tracingShutdown = shutdown

	// 2. model + pipeline
	if m == nil {
		if m, err = loadModel(cfg.Model.File); err != nil {
			e.release(context.Background())
			return nil, err
		}
	}
	p := transform.New(m)

	// 3. payload log
	if e.reqlog, err = requestLog(cfg.RequestLog); err != nil {
		e.release(context.Background())
		return nil, fmt.Errorf("request log: %w", err)
	}

	// 4. front ends
	ann, err := config.LoadAnnotations(cfg.AnnotationsFile)
	if err != nil {
		e.release(context.Background())
		return nil, err
	}
	maxMsg, err := transport.ResolveMaxMessageSize(ann, cfg.GRPC.MaxMessageSize)
	if err != nil {
		e.release(context.Background())
		return nil, err
	}
	e.grpc = transport.NewServer(p, transport.Options{
		Workers:        cfg.GRPC.Workers,
		MaxMessageSize: maxMsg,
		RequestLog:     e.reqlog,
	})
	e.http = &http.Server{
		Handler: rest.NewHandler(p, rest.Options{
			APIDoc:       cfg.HTTP.APIDoc,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
			CORSOrigins:  cfg.HTTP.CORSOrigins,
			RequestLog:   e.reqlog,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. stream mode
	if cfg.Stream.Enabled {
		d, err := transform.ParseDirection(cfg.Stream.Direction)
		if err != nil {
			e.release(context.Background())
			return nil, err
		}
		if e.runner, err = stream.Compile(cfg.Stream, stream.PipelineHandler(p, d)); err != nil {
			e.release(context.Background())
			return nil, fmt.Errorf("stream: %w", err)
		}
	}

	// 6. metrics
	e.metrics = telemetry.Expose(cfg.Metrics.Port)
	return e, nil
}

func loadModel(path string) (any, error) {
	if path == "" {
		logging.L().Warn("no model configured; serving identity transforms")
		return struct{}{}, nil
	}
	s, err := builtin.Load(path)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	logging.L().Info("loaded builtin model", "file", path)
	return s, nil
}

func requestLog(cfg config.RequestLogConfig) (*reqlog.Logger, error) {
	var sinks []sink.Adapter
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}
	for _, name := range cfg.Sinks {
		s, err := sink.NewAdapter(name)
		if err != nil {
			closeAll()
			return nil, err
		}
		switch name {
		case "stdout":
			err = s.Configure(stdout.Config{})
		case "kafka":
			err = s.Configure(cfg.Kafka)
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return reqlog.New(sinks...), nil
}

func (e *Engine) listen() error {
	httpAddr := fmt.Sprintf(":%d", e.cfg.HTTP.Port)
	if e.cfg.HTTP.Port != 0 && e.cfg.HTTP.Port == e.cfg.GRPC.Port {
		root, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", httpAddr, err)
		}
		e.attachMux(root)
		return nil
	}

	hl, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", httpAddr, err)
	}
	grpcAddr := fmt.Sprintf(":%d", e.cfg.GRPC.Port)
	gl, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		_ = hl.Close()
		return fmt.Errorf("listen grpc %s: %w", grpcAddr, err)
	}
	e.httpLis, e.grpcLis = hl, gl
	return nil
}

// attachMux serves both protocols from root: gRPC by content-type, the rest
// as HTTP/1.
func (e *Engine) attachMux(root net.Listener) {
	e.root = root
	e.mux = cmux.New(root)
	e.grpcLis = e.mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	e.httpLis = e.mux.Match(cmux.Any())
}

// release frees whatever build managed to create.
func (e *Engine) release(ctx context.Context) {
	var errs []error
	if e.runner != nil {
		errs = append(errs, e.runner.Close())
	}
	if e.reqlog != nil {
		errs = append(errs, e.reqlog.Close())
	}
	if e.metrics != nil {
		errs = append(errs, e.metrics.Shutdown(ctx))
	}
	if e.tracingShutdown != nil {
		errs = append(errs, e.tracingShutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		logging.L().Warn("engine: shutdown", "err", err)
	}
}
