// Package rest is the HTTP front end: one route per transform direction, the
// API description document and a liveness probe.
package rest

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"modelwrap/internal/apierr"
	"modelwrap/internal/logging"
	"modelwrap/internal/message"
	"modelwrap/internal/reqlog"
	"modelwrap/internal/telemetry"
	"modelwrap/internal/transform"
	"modelwrap/internal/validate"
)

const (
	protocol        = "rest"
	jsonContentType = "application/json; charset=utf-8"
)

type Options struct {
	// APIDoc is served at /seldon.json.
	APIDoc       string
	MaxBodyBytes int64
	// CORSOrigins defaults to every origin.
	CORSOrigins []string
	RequestLog  *reqlog.Logger
}

type server struct {
	pipeline *transform.Pipeline
	opts     Options
}

// NewRouter builds the gin engine serving p.
func NewRouter(p *transform.Pipeline, opts Options) *gin.Engine {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = validate.DefaultMaxBody
	}
	s := &server{pipeline: p, opts: opts}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	router.GET("/health/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/seldon.json", s.apiDoc)

	verbs := []string{http.MethodGet, http.MethodPost}
	router.Match(verbs, "/transform-input", s.transform(transform.Input))
	router.Match(verbs, "/transform-output", s.transform(transform.Output))
	return router
}

// NewHandler is NewRouter wrapped with OpenTelemetry server spans.
func NewHandler(p *transform.Pipeline, opts Options) http.Handler {
	return otelhttp.NewHandler(NewRouter(p, opts), "modelwrap.rest")
}

func (s *server) transform(d transform.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req, err := validate.Extract(c.Request, s.opts.MaxBodyBytes)
		var resp *message.Message
		if err == nil {
			resp, err = s.pipeline.Run(c.Request.Context(), d, req)
		}
		var body []byte
		if err == nil {
			if body, err = json.Marshal(resp); err != nil {
				err = apierr.Wrap(apierr.InternalInconsistency, err, "encode response")
				resp = nil
			}
		}
		s.opts.RequestLog.Log(protocol, d.String(), req, resp, err)

		code := http.StatusOK
		if err != nil {
			code = apierr.HTTPStatus(err)
			logging.L().Warn("rest: transform failed",
				"direction", d.String(), "status", code, "kind", apierr.KindOf(err).String(), "err", err)
			// a status body is plain strings and always encodes
			body, _ = json.Marshal(apierr.Body(err))
		}
		telemetry.ObserveRequest(protocol, d.String(), strconv.Itoa(code), time.Since(start))
		c.Data(code, jsonContentType, body)
	}
}

func (s *server) apiDoc(c *gin.Context) {
	info, err := os.Stat(s.opts.APIDoc)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.L().Warn("rest: api doc", "path", s.opts.APIDoc, "err", err)
		}
		c.Status(http.StatusNotFound)
		return
	}
	c.File(s.opts.APIDoc)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.L().Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
