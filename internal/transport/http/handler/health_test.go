package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func healthRouter(p Pinger) http.Handler {
	r := chi.NewRouter()
	r.Get("/health-check/{action}", NewHealthHandler(p).Check)
	return r
}

func TestHealth(t *testing.T) {
	up := healthRouter(pingFunc(func(context.Context) error { return nil }))
	down := healthRouter(pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }))

	rr := do(up, http.MethodGet, "/health-check/ping", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", decodeBody(t, rr)["message"])

	assert.Equal(t, http.StatusOK, do(up, http.MethodGet, "/health-check/ready", "").Code)

	rr = do(down, http.MethodGet, "/health-check/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "dial tcp")

	assert.Equal(t, http.StatusBadRequest, do(up, http.MethodGet, "/health-check/nope", "").Code)
}
