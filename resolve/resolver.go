package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/savegram/grab-server/tr"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrBadURL      = errors.New("source url must be an absolute http(s) url")
	ErrUnsupported = errors.New("no provider supports this url")
)

// Provider turns a source post URL into a normalized Result. One attempt
// per resolution, no internal retries.
type Provider interface {
	fmt.Stringer
	IsSupported(url string) bool
	Resolve(ctx context.Context, req Request) (Result, error)
}

// Resolver walks Providers in configured priority order and returns the
// first usable Result. A provider failure (timeout, non-2xx, bad JSON,
// error status) advances to the next provider; the success path never
// consults more than one.
type Resolver struct {
	Providers      []Provider
	AttemptTimeout time.Duration // per provider, defaults to 10s
}

func (r *Resolver) IsSupported(url string) bool {
	for _, p := range r.Providers {
		if p.IsSupported(url) {
			return true
		}
	}
	return false
}

func (r *Resolver) Resolve(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "resolve")
	defer tr.End(span, &err)
	span.SetAttributes(attribute.String("source_url", req.URL), attribute.String("mode", string(req.Mode)))

	if !absoluteHTTP(req.URL) {
		return Result{}, ErrBadURL
	}
	if req.Mode == "" {
		req.Mode = ModeAuto
	}

	timeout := r.AttemptTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	errs := []error{}
	for _, p := range r.Providers {
		if !p.IsSupported(req.URL) {
			continue
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err = p.Resolve(attemptCtx, req)
		cancel()
		if err == nil {
			err = validate(res)
		}
		if err != nil {
			slog.Warn("provider attempt failed", "provider", p.String(), "url", req.URL, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}

		span.SetAttributes(attribute.String("provider", p.String()))
		return res, nil
	}

	if len(errs) == 0 {
		return Result{}, ErrUnsupported
	}
	return Result{}, fmt.Errorf("resolving %s: %w", req.URL, errors.Join(errs...))
}

// validate enforces the Result invariants before a provider reply is
// allowed to win the walk.
func validate(res Result) error {
	switch res.Kind {
	case KindSingle:
		if !absoluteHTTP(res.Single.MediaURL) {
			return fmt.Errorf("media url %q is not absolute", res.Single.MediaURL)
		}
	case KindPicker:
		if len(res.Items) == 0 {
			return errors.New("picker result with no items")
		}
		for _, item := range res.Items {
			if !absoluteHTTP(item.MediaURL) {
				return fmt.Errorf("picker item url %q is not absolute", item.MediaURL)
			}
		}
	default:
		return fmt.Errorf("unknown result kind %q", res.Kind)
	}
	return nil
}
