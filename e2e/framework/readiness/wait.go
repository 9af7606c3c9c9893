package readiness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Readiness defaults returned by DefaultOptions.
const (
	DefaultHealthPath   = "/$/ping"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultSettle       = 3 * time.Second
)

// Clock abstracts time so polling can be driven by a fake in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options controls how the store is polled.
type Options struct {
	HealthPath   string
	Timeout      time.Duration
	PollInterval time.Duration
	Settle       time.Duration
	Client       HTTPDoer
	Clock        Clock
	Logger       logr.Logger
}

// DefaultOptions returns the options used against a freshly started store.
func DefaultOptions() Options {
	return Options{
		HealthPath:   DefaultHealthPath,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		Settle:       DefaultSettle,
	}
}

// Validate rejects option combinations that cannot terminate sensibly.
func (o Options) Validate() error {
	if o.Timeout <= 0 {
		return fmt.Errorf("readiness timeout must be positive, got %s", o.Timeout)
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("readiness poll interval must be positive, got %s", o.PollInterval)
	}
	if o.PollInterval > o.Timeout {
		return fmt.Errorf("readiness poll interval %s exceeds timeout %s", o.PollInterval, o.Timeout)
	}
	if o.Settle < 0 {
		return fmt.Errorf("readiness settle delay must not be negative, got %s", o.Settle)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.HealthPath == "" {
		o.HealthPath = DefaultHealthPath
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: o.Timeout}
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Logger.GetSink() == nil {
		o.Logger = logr.Discard()
	}
	return o
}

// Result describes the outcome of a readiness wait.
type Result struct {
	URL        string
	Ready      bool
	Elapsed    time.Duration
	Attempts   int
	LastStatus int
	LastError  error
}

// Err converts a failed wait into an error that should abort the session.
func (r Result) Err() error {
	if r.Ready {
		return nil
	}
	msg := fmt.Sprintf("store at %s not ready after %s (%d attempts", r.URL, r.Elapsed, r.Attempts)
	if r.LastStatus != 0 {
		msg += fmt.Sprintf(", last status %d", r.LastStatus)
	}
	if r.LastError != nil {
		msg += fmt.Sprintf(", last error: %v", r.LastError)
	}
	return fmt.Errorf("%s)", msg)
}

// WaitUntilReady polls baseURL+HealthPath until it answers 200 or the timeout
// elapses. Connection errors and other statuses count as not ready yet. A
// timeout yields Ready=false with a nil error; errors are returned only for
// invalid options or a cancelled context. After success it sleeps the settle
// delay, which is included in Elapsed.
func WaitUntilReady(ctx context.Context, baseURL string, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	opts = opts.withDefaults()
	target := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(opts.HealthPath, "/")
	result := Result{URL: target}
	log := opts.Logger.WithValues("url", target)

	start := opts.Clock.Now()
	for {
		result.Attempts++
		status, err := checkHealth(ctx, opts.Client, target)
		result.LastStatus, result.LastError = status, err
		if status == http.StatusOK {
			log.V(1).Info("store responded", "attempts", result.Attempts, "elapsed", opts.Clock.Now().Sub(start).String())
			if err := opts.Clock.Sleep(ctx, opts.Settle); err != nil {
				result.Elapsed = opts.Clock.Now().Sub(start)
				return result, err
			}
			result.Ready = true
			result.Elapsed = opts.Clock.Now().Sub(start)
			log.Info("store ready", "attempts", result.Attempts, "elapsed", result.Elapsed.String())
			return result, nil
		}
		if ctx.Err() != nil {
			result.Elapsed = opts.Clock.Now().Sub(start)
			return result, ctx.Err()
		}
		log.V(1).Info("store not ready", "attempt", result.Attempts, "status", status, "error", errString(err))

		elapsed := opts.Clock.Now().Sub(start)
		if elapsed >= opts.Timeout {
			result.Elapsed = elapsed
			log.Info("store did not become ready", "attempts", result.Attempts, "elapsed", elapsed.String())
			return result, nil
		}
		pause := opts.PollInterval
		if remaining := opts.Timeout - elapsed; remaining < pause {
			pause = remaining
		}
		if err := opts.Clock.Sleep(ctx, pause); err != nil {
			result.Elapsed = opts.Clock.Now().Sub(start)
			return result, err
		}
	}
}

func checkHealth(ctx context.Context, client HTTPDoer, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
