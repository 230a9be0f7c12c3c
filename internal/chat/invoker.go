package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/folioscope/portfolio-chat/internal/config"
	"github.com/folioscope/portfolio-chat/internal/llm"
)

var ErrCredentialMissing = errors.New("no API credential configured")

// CredentialSource hands out the current credential. Load returns "" when
// there is none.
type CredentialSource interface {
	Load(ctx context.Context) string
	Invalidate(ctx context.Context) error
}

// RetryPolicy bounds automatic retries of network and upstream failures.
// One attempt means no retry.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type InvokerConfig struct {
	LLM   llm.Config
	Retry RetryPolicy
	// RatePerMinute caps outbound calls; zero disables the cap.
	RatePerMinute float64
	Burst         int
	// DisableFallback makes a missing credential an error instead of a
	// canned local reply.
	DisableFallback bool
}

// InvokerConfigFrom maps the LLM section of the application config.
func InvokerConfigFrom(cfg config.Config) InvokerConfig {
	return InvokerConfig{
		LLM: llm.Config{
			Provider:    cfg.LLMProvider,
			Model:       cfg.LLMModel,
			BaseURL:     cfg.LLMBaseURL,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
			Timeout:     cfg.LLMTimeout,
		},
		Retry: RetryPolicy{
			MaxAttempts:     cfg.LLMRetryMaxAttempts,
			InitialInterval: cfg.LLMRetryInitialInterval,
			MaxInterval:     cfg.LLMRetryMaxInterval,
		},
		RatePerMinute: cfg.LLMRatePerMinute,
		Burst:         cfg.LLMRateBurst,
	}
}

type Result struct {
	Reply  llm.Reply
	Raw    string
	Canned bool
}

// Invoker runs one chat-completion call per Invoke.
type Invoker struct {
	cfg         llm.Config
	retry       RetryPolicy
	credentials CredentialSource
	fallback    llm.Provider
	limiter     *rate.Limiter
	newProvider func(llm.Config) (llm.Provider, error)
}

func NewInvoker(cfg InvokerConfig, credentials CredentialSource) *Invoker {
	inv := &Invoker{
		cfg:         cfg.LLM,
		retry:       cfg.Retry,
		credentials: credentials,
		newProvider: llm.NewProvider,
	}
	if inv.cfg.Timeout <= 0 {
		inv.cfg.Timeout = llm.DefaultTimeout
	}
	if inv.retry.MaxAttempts < 1 {
		inv.retry.MaxAttempts = 1
	}
	if !cfg.DisableFallback {
		inv.fallback = llm.LocalProvider{}
	}
	if cfg.RatePerMinute > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		inv.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60), burst)
	}
	return inv
}

// Invoke sends messages and parses the reply. Failures come back as
// *llm.RemoteError, or ErrCredentialMissing. An auth failure invalidates the
// stored credential before returning.
func (i *Invoker) Invoke(ctx context.Context, messages []Message) (Result, error) {
	provider, canned, err := i.provider(ctx)
	if err != nil {
		return Result{}, err
	}
	if !canned && i.limiter != nil && !i.limiter.Allow() {
		return Result{}, &llm.RemoteError{Kind: llm.KindRateLimited, Detail: "local request budget exhausted"}
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	payload := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		payload = append(payload, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	var raw string
	attempt := 0
	operation := func() error {
		attempt++
		out, err := provider.Generate(ctx, payload)
		if err != nil {
			remote := llm.Classify(err)
			if !remote.Retryable() {
				return backoff.Permanent(remote)
			}
			if attempt < i.retry.MaxAttempts {
				log.Printf("llm call attempt %d failed: %v", attempt, remote)
			}
			return remote
		}
		raw = out
		return nil
	}
	if err := backoff.Retry(operation, i.backoff(ctx)); err != nil {
		remote := llm.Classify(err)
		if ctx.Err() != nil && remote.Kind != llm.KindNetwork {
			remote = &llm.RemoteError{Kind: llm.KindNetwork, Detail: "request timed out", Err: ctx.Err()}
		}
		if remote.Kind == llm.KindAuth && i.credentials != nil {
			if invErr := i.credentials.Invalidate(context.WithoutCancel(ctx)); invErr != nil {
				log.Printf("failed to invalidate credential: %v", invErr)
			}
		}
		return Result{}, remote
	}
	return Result{Reply: llm.ParseReply(raw), Raw: raw, Canned: canned}, nil
}

func (i *Invoker) provider(ctx context.Context) (llm.Provider, bool, error) {
	if i.cfg.Provider == "local" {
		return llm.LocalProvider{}, true, nil
	}
	key := ""
	if i.credentials != nil {
		key = i.credentials.Load(ctx)
	}
	if key == "" {
		if i.fallback == nil {
			return nil, false, ErrCredentialMissing
		}
		return i.fallback, true, nil
	}
	provider, err := i.newProvider(i.cfg.WithAPIKey(key))
	if err != nil {
		return nil, false, err
	}
	return provider, false, nil
}

func (i *Invoker) backoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if i.retry.InitialInterval > 0 {
		exp.InitialInterval = i.retry.InitialInterval
	}
	if i.retry.MaxInterval > 0 {
		exp.MaxInterval = i.retry.MaxInterval
	}
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(i.retry.MaxAttempts-1)), ctx)
}
