// Package server exposes the solvers over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/config"
	"github.com/timpalpant/marketgame/matrixgame"
)

var validate = validator.New()

// APIArea is the area label under which transitions analyzed for requests
// are recorded, since request area names are unbounded.
const APIArea = "api"

type apiRecorder struct {
	marketgame.Recorder
}

func (r apiRecorder) RecordTransition(string) {
	r.Recorder.RecordTransition(APIArea)
}

// SolveRequest asks for the solver outputs of a caller-supplied payoff
// matrix. Companies default to "0", "1", ...
type SolveRequest struct {
	Matrix    matrixgame.Matrix `json:"matrix" validate:"required,min=1"`
	Companies []string          `json:"companies"`
	Steps     int               `json:"steps" default:"200" validate:"gte=0,lte=100000"`
	TimeStep  float64           `json:"dt" default:"0.01" validate:"gt=0"`
}

// AnalyzeRequest runs the full analysis over inline observations.
type AnalyzeRequest struct {
	Observations []marketgame.Observation `json:"observations" validate:"required,min=1,dive"`
	Influence    *float64                 `json:"influence" default:"0.25" validate:"required,gte=0,lte=1"`
	Cap          float64                  `json:"cap" default:"50" validate:"gt=0"`
	Steps        int                      `json:"steps" default:"200" validate:"gte=0,lte=100000"`
	TimeStep     float64                  `json:"dt" default:"0.01" validate:"gt=0"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	echo     *echo.Echo
	cfg      config.Server
	params   marketgame.Params
	recorder marketgame.Recorder
}

// New creates the server. params supply the worker and cache settings of
// each request's analyzer. gatherer backs /metrics.
func New(cfg config.Server, params marketgame.Params, recorder marketgame.Recorder, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(requestLogging)

	if recorder != nil {
		recorder = apiRecorder{recorder}
	}

	s := &Server{
		echo:     e,
		cfg:      cfg,
		params:   params,
		recorder: recorder,
	}

	e.GET("/healthz", s.healthz)
	e.POST("/v1/solve", s.solve)
	e.POST("/v1/analyze", s.analyze)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errC := make(chan error, 1)
	go func() {
		glog.Infof("Listening on %s", s.cfg.Addr)
		errC <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errC:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	glog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}

	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}

	return nil
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) solve(c echo.Context) error {
	var req SolveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	companies := req.Companies
	if len(companies) == 0 {
		companies = make([]string, len(req.Matrix))
		for i := range companies {
			companies[i] = strconv.Itoa(i)
		}
	}

	params := s.params
	params.Steps = req.Steps
	params.TimeStep = req.TimeStep
	a, err := marketgame.NewAnalyzer(params, s.recorder)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sol, err := a.Solve(req.Matrix, companies)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, sol)
}

func (s *Server) analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	params := s.params
	params.Payoff = marketgame.PayoffParams{
		Influence: *req.Influence,
		Cap:       req.Cap,
	}
	params.Steps = req.Steps
	params.TimeStep = req.TimeStep
	a, err := marketgame.NewAnalyzer(params, s.recorder)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	agg, err := marketgame.NewAggregates(req.Observations)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start := time.Now()
	report := marketgame.NewReport(a.AnalyzeAll(agg), params, "")
	glog.V(1).Infof("Analyzed %d transitions for request (took: %v)", report.NumTransitions(), time.Since(start))
	return c.JSON(http.StatusOK, report)
}

// bindAndValidate decodes the body, applies defaults to omitted fields and
// validates the result.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}

	if err := defaults.Set(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	if code >= http.StatusInternalServerError {
		glog.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if err := c.JSON(code, ErrorResponse{Error: msg}); err != nil {
		glog.Warningf("Unable to write error response: %v", err)
	}
}

func requestLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		glog.V(1).Infof("%s %s %d (took: %v)", c.Request().Method, c.Request().URL.Path,
			c.Response().Status, time.Since(start))
		return err
	}
}
