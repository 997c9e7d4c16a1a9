package web

import "time"

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// ShutdownTimeout caps graceful shutdown; the caller's context may
	// shorten it further.
	ShutdownTimeout time.Duration
}

type Options struct {
	Routes      []func(r Router)
	Middlewares []Handler
}

type Option func(*Options)

// WithRoutes registers routes when the engine is built.
func WithRoutes(f func(r Router)) Option {
	return func(o *Options) { o.Routes = append(o.Routes, f) }
}

// WithMiddlewares appends middlewares after the built-in ones.
func WithMiddlewares(m ...Handler) Option {
	return func(o *Options) { o.Middlewares = append(o.Middlewares, m...) }
}
