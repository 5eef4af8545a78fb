// Package mockwapi is an in-memory stand-in for the Infoblox WAPI REST API.
// It serves host records, A records and networks so the infoblox connector
// can be exercised without an appliance.
package mockwapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

const (
	CookieName = "ibapauth"

	defaultMaxResults = 1000
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type Options struct {
	// Username and Password enable basic auth. Empty Username accepts every request.
	Username string
	Password string
	// Version pins the accepted WAPI version ("2.12"). Empty accepts any.
	Version string
	Logger  *slog.Logger
}

type Server struct {
	opts     Options
	e        *echo.Echo
	store    store
	sessions sync.Map
	logger   *slog.Logger
}

func New(opts Options) *Server {
	opts.Version = strings.TrimPrefix(strings.TrimSpace(opts.Version), "v")
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{opts: opts, e: echo.New(), logger: logger}
	s.e.Logger = logger
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.e.GET("/health", s.handleHealth)
	s.e.POST("/admin/reset", s.handleReset)

	wapi := s.e.Group("/wapi/:version", s.logRequests, s.checkVersion, s.authenticate)
	wapi.GET("/:objtype", s.handleList)
	wapi.POST("/:objtype", s.handleCreate)
	wapi.GET("/:objtype/*", s.handleGet)
	wapi.PUT("/:objtype/*", s.handleUpdate)
	wapi.DELETE("/:objtype/*", s.handleDelete)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Reset drops every stored object.
func (s *Server) Reset() {
	s.store.reset()
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mock wapi listening", "addr", addr, "version", s.opts.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		r := c.Request()
		s.logger.Debug("wapi request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		return next(c)
	}
}

func (s *Server) checkVersion(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		v := c.Param("version")
		if !strings.HasPrefix(v, "v") || (s.opts.Version != "" && strings.TrimPrefix(v, "v") != s.opts.Version) {
			return writeError(c, protoError("Unsupported WAPI version '%s'", v))
		}
		return next(c)
	}
}

// authenticate accepts a live ibapauth session cookie or basic auth, and
// issues a new session cookie on basic auth success.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if s.opts.Username == "" {
			return next(c)
		}
		if ck, err := c.Cookie(CookieName); err == nil {
			if _, ok := s.sessions.Load(ck.Value); ok {
				return next(c)
			}
		}
		user, pass, ok := c.Request().BasicAuth()
		if !ok || !s.validCredentials(user, pass) {
			c.Response().Header().Set("WWW-Authenticate", `Basic realm="InfobloxONE"`)
			return writeError(c, &wapiError{
				Status: http.StatusUnauthorized,
				Error:  "AdmConProtoError: Authorization Required",
				Code:   "Client.Ibap.Proto.Authorization",
				Text:   "Authorization Required",
			})
		}
		session := uuid.NewString()
		s.sessions.Store(session, struct{}{})
		c.SetCookie(&http.Cookie{Name: CookieName, Value: session, Path: "/", HttpOnly: true})
		return next(c)
	}
}

func (s *Server) validCredentials(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.opts.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.opts.Password)) == 1
	return userOK && passOK
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(c *echo.Context) error {
	s.Reset()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleList(c *echo.Context) error {
	typ, werr := lookupType(c.Param("objtype"))
	if werr != nil {
		return writeError(c, werr)
	}
	q := c.QueryParams()
	limit := defaultMaxResults
	if raw := q.Get("_max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n == 0 {
			return writeError(c, protoError("Invalid value for _max_results: '%s'", raw))
		}
		limit = n
	}

	filters := map[string]string{}
	for k, v := range q {
		if strings.HasPrefix(k, "_") || len(v) == 0 {
			continue
		}
		filters[k] = v[0]
	}
	items := s.store.list(typ.name, filters)
	if items == nil {
		items = []map[string]any{}
	}

	switch {
	case limit > 0 && len(items) > limit:
		return writeError(c, protoError("Result set too large (> %d)", limit))
	case limit < 0 && len(items) > -limit:
		items = items[:-limit]
	}
	if q.Get("_return_as_object") == "1" {
		return c.JSON(http.StatusOK, map[string]any{"result": items})
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleCreate(c *echo.Context) error {
	typ, werr := lookupType(c.Param("objtype"))
	if werr != nil {
		return writeError(c, werr)
	}
	body, werr := decodeBody(c)
	if werr != nil {
		return writeError(c, werr)
	}
	ref, werr := s.store.create(typ, body)
	if werr != nil {
		return writeError(c, werr)
	}
	return s.writeRef(c, http.StatusCreated, ref)
}

func (s *Server) handleGet(c *echo.Context) error {
	obj, werr := s.store.get(refParam(c))
	if werr != nil {
		return writeError(c, werr)
	}
	return c.JSON(http.StatusOK, obj)
}

func (s *Server) handleUpdate(c *echo.Context) error {
	body, werr := decodeBody(c)
	if werr != nil {
		return writeError(c, werr)
	}
	ref, werr := s.store.update(refParam(c), body)
	if werr != nil {
		return writeError(c, werr)
	}
	return s.writeRef(c, http.StatusOK, ref)
}

func (s *Server) handleDelete(c *echo.Context) error {
	ref, werr := s.store.delete(refParam(c))
	if werr != nil {
		return writeError(c, werr)
	}
	return c.JSON(http.StatusOK, ref)
}

// writeRef answers a write with the bare ref string, or with the whole object
// when the caller asked for return fields.
func (s *Server) writeRef(c *echo.Context, status int, ref string) error {
	q := c.QueryParams()
	if q.Has("_return_fields") || q.Has("_return_fields+") {
		obj, werr := s.store.get(ref)
		if werr != nil {
			return writeError(c, werr)
		}
		return c.JSON(status, obj)
	}
	return c.JSON(status, ref)
}

func refParam(c *echo.Context) string {
	return c.Param("objtype") + "/" + c.Param("*")
}

func lookupType(name string) (objectType, *wapiError) {
	typ, ok := objectTypes[name]
	if !ok {
		return objectType{}, protoError("Unknown object type (%s)", name)
	}
	return typ, nil
}

func decodeBody(c *echo.Context) (map[string]any, *wapiError) {
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, protoError("Invalid JSON body: %v", err)
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func writeError(c *echo.Context, werr *wapiError) error {
	return c.JSON(werr.Status, werr)
}
