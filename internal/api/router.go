package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "playground/internal/api/context"
	"playground/internal/api/handlers"
	"playground/internal/api/middleware"
	"playground/internal/pkg/errors"
)

type Dependencies struct {
	PlaygroundHandler *handlers.PlaygroundHandler
	HealthHandler     *handlers.HealthHandler
	MetricsHandler    *handlers.MetricsHandler
	SessionMiddleware *middleware.SessionMiddleware
	RateLimiter       *middleware.RateLimiter
}

// NewRouter wires the playground routes. The returned handler logs every
// request.
func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Not found", nil)
	})

	// Operational endpoints
	router.GET("/healthz", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	sessMid := deps.SessionMiddleware.Handle
	limit := deps.RateLimiter.Handle
	pg := deps.PlaygroundHandler

	// Page and navigation
	router.GET("/", chain(pg.Page, sessMid))
	router.GET("/tabs/:tab", chain(pg.SelectTab, sessMid))

	// Actions. The limiter runs first so refused requests never start a session.
	router.POST("/actions/login", chain(pg.Login, limit, sessMid))
	router.POST("/actions/register", chain(pg.Register, limit, sessMid))
	router.POST("/actions/refresh", chain(pg.Refresh, limit, sessMid))
	router.POST("/actions/logout", chain(pg.Logout, limit, sessMid))
	router.POST("/actions/events", chain(pg.SendEvent, limit, sessMid))
	router.POST("/actions/events/list", chain(pg.ListEvents, limit, sessMid))
	router.POST("/actions/sample/:screen", chain(pg.FillSample, limit, sessMid))
	router.POST("/actions/toast/dismiss", chain(pg.DismissToast, limit, sessMid))

	return middleware.RequestLogger(router)
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
