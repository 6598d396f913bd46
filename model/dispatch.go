package model

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/logging"
	"github.com/probelabs/probe/transcript"
)

// Retry policy constants matching provider rate-limit recovery behavior.
const (
	retryInitialInterval = 3 * time.Second
	retryMaxInterval     = 30 * time.Minute
)

// Options configure a Model wrapper.
type Options struct {
	Config GenerateConfig
	Cache  *GenerateCache
	Usage  *UsageTracker
	Logger logging.Logger

	// RetryInitialInterval and RetryMaxInterval tune the backoff window.
	// Defaults suit provider rate limits; tests shrink them.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// Model wraps a Provider with the dispatch concerns flows should not have
// to care about: per-call config merging, message collapsing, retry with
// exponential backoff, a per-connection-key semaphore, generate caching,
// transcript recording and usage accounting.
//
// A Model is safe for concurrent use. Bind returns a shallow copy attached
// to one run's transcript and limits.
type Model struct {
	provider Provider
	config   GenerateConfig
	cache    *GenerateCache
	usage    *UsageTracker
	logger   logging.Logger

	retryInitial time.Duration
	retryMax     time.Duration

	tr     *transcript.Transcript
	limits *core.Limits
}

// New wraps a provider.
func New(provider Provider, optFns ...func(o *Options)) *Model {
	opts := Options{
		Usage:                globalUsage,
		Logger:               logging.NoOpLogger{},
		RetryInitialInterval: retryInitialInterval,
		RetryMaxInterval:     retryMaxInterval,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{
		provider:     provider,
		config:       opts.Config,
		cache:        opts.Cache,
		usage:        opts.Usage,
		logger:       opts.Logger,
		retryInitial: opts.RetryInitialInterval,
		retryMax:     opts.RetryMaxInterval,
	}
}

// Info implements Generator.
func (m *Model) Info() Info { return m.provider.Info() }

// Provider returns the wrapped provider.
func (m *Model) Provider() Provider { return m.provider }

// Bind returns a copy of the model attached to a run's transcript and
// limits. Cache, usage tracker and connection pool stay shared.
func (m *Model) Bind(tr *transcript.Transcript, limits *core.Limits) *Model {
	bound := *m
	bound.tr = tr
	bound.limits = limits
	return &bound
}

// Binder is implemented by generators that can attach run-scoped services.
// Flows bind before generating so transcripts and limits follow the run.
type Binder interface {
	Bind(tr *transcript.Transcript, limits *core.Limits) *Model
}

// Generate implements Generator. Streaming requests pass provider chunks
// through unchanged (no retry, no cache); non-streaming requests go through
// the full dispatch path and emit a single final response.
func (m *Model) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		cfg := m.config.Merge(req.Config)
		req.Config = nil

		if m.limits != nil {
			if err := m.limits.CheckMessages(len(req.Contents)); err != nil {
				errCh <- err
				return
			}
		}

		if m.provider.CollapseUserMessages() {
			req.Contents = CollapseUserMessages(req.Contents)
		}
		if m.provider.CollapseAssistantMessages() {
			req.Contents = CollapseAssistantMessages(req.Contents)
		}

		if req.Stream {
			m.generateStreaming(ctx, req, cfg, out, errCh)
			return
		}

		resp, err := m.generate(ctx, req, cfg)
		if err != nil {
			errCh <- err
			return
		}
		out <- resp
	}()

	return out, errCh
}

// generate is the non-streaming dispatch path.
func (m *Model) generate(ctx context.Context, req Request, cfg GenerateConfig) (Response, error) {
	name := m.Info().Name

	var ev *transcript.ModelEvent
	if m.tr != nil {
		ev = m.tr.RecordModel(name, req.Contents, req.Tools, req.ToolChoice, cfg)
	}

	if m.limits != nil {
		if err := m.limits.CountModelCall(); err != nil {
			completeModelEvent(ev, nil, err, "", 0)
			return Response{}, err
		}
	}

	var key string
	if cfg.Cache && m.cache != nil {
		key = CacheKey(name, cfg, req)
		if key != "" {
			if cached, ok := m.cache.Fetch(key); ok {
				m.logger.Debug("generate cache hit", "model", name)
				completeModelEvent(ev, &cached, nil, "read", 0)
				return cached, nil
			}
		}
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = m.retryInitial
	expo.MaxInterval = m.retryMax

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(expo),
		backoff.WithNotify(func(err error, wait time.Duration) {
			m.logger.Warn("retrying model call", "model", name, "wait", wait.String(), "error", err.Error())
		}),
	}
	if cfg.MaxRetries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(uint(cfg.MaxRetries)))
	}

	start := time.Now()
	resp, err := backoff.Retry(ctx, func() (Response, error) {
		release, acqErr := acquireConnection(ctx, m.provider, cfg)
		if acqErr != nil {
			return Response{}, backoff.Permanent(acqErr)
		}
		defer release()

		r, genErr := Collect(m.provider.Generate(ctx, req))
		if genErr != nil {
			if m.provider.ShouldRetry(genErr) {
				return Response{}, genErr
			}
			return Response{}, backoff.Permanent(genErr)
		}
		return r, nil
	}, retryOpts...)
	working := time.Since(start)

	if err != nil {
		completeModelEvent(ev, nil, err, "", working)
		m.logger.Error("model call failed", "model", name, "error", err.Error())
		return Response{}, err
	}

	if resp.Usage != nil {
		if m.usage != nil {
			m.usage.Record(name, *resp.Usage)
		}
		if m.usage != globalUsage {
			globalUsage.Record(name, *resp.Usage)
		}
		if m.limits != nil {
			if lerr := m.limits.RecordTokens(resp.Usage.TotalTokens); lerr != nil {
				completeModelEvent(ev, &resp, lerr, "", working)
				return Response{}, lerr
			}
		}
	}

	cacheMark := ""
	if key != "" {
		m.cache.Store(key, resp)
		cacheMark = "write"
	}

	completeModelEvent(ev, &resp, nil, cacheMark, working)
	return resp, nil
}

// generateStreaming forwards provider chunks, recording the final response
// in the transcript and usage/limit accounting once the stream ends.
func (m *Model) generateStreaming(ctx context.Context, req Request, cfg GenerateConfig, out chan<- Response, errCh chan<- error) {
	name := m.Info().Name

	var ev *transcript.ModelEvent
	if m.tr != nil {
		ev = m.tr.RecordModel(name, req.Contents, req.Tools, req.ToolChoice, cfg)
	}

	if m.limits != nil {
		if err := m.limits.CountModelCall(); err != nil {
			completeModelEvent(ev, nil, err, "", 0)
			errCh <- err
			return
		}
	}

	release, err := acquireConnection(ctx, m.provider, cfg)
	if err != nil {
		completeModelEvent(ev, nil, err, "", 0)
		errCh <- err
		return
	}
	defer release()

	start := time.Now()
	inner, innerErr := m.provider.Generate(ctx, req)

	var final *Response
	for inner != nil || innerErr != nil {
		select {
		case resp, ok := <-inner:
			if !ok {
				inner = nil
				continue
			}
			if !resp.Partial {
				r := resp
				final = &r
			}
			out <- resp
		case genErr, ok := <-innerErr:
			if !ok {
				innerErr = nil
				continue
			}
			if genErr != nil {
				completeModelEvent(ev, nil, genErr, "", time.Since(start))
				errCh <- genErr
				return
			}
		}
	}

	working := time.Since(start)
	if final == nil {
		completeModelEvent(ev, nil, ErrNoResponse, "", working)
		errCh <- ErrNoResponse
		return
	}

	if final.Usage != nil {
		if m.usage != nil {
			m.usage.Record(name, *final.Usage)
		}
		if m.usage != globalUsage {
			globalUsage.Record(name, *final.Usage)
		}
		if m.limits != nil {
			if lerr := m.limits.RecordTokens(final.Usage.TotalTokens); lerr != nil {
				completeModelEvent(ev, final, lerr, "", working)
				errCh <- lerr
				return
			}
		}
	}

	completeModelEvent(ev, final, nil, "", working)
}

func completeModelEvent(ev *transcript.ModelEvent, resp *Response, err error, cacheMark string, working time.Duration) {
	if ev == nil {
		return
	}
	if resp != nil {
		ev.Output = *resp
	}
	if err != nil {
		ev.Error = err.Error()
	}
	ev.Cache = cacheMark
	ev.Working = working.Seconds()
	ev.Complete()
}
