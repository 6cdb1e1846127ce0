// Package telemetry reports unexpected failures to Sentry when a DSN is
// configured. Every function is a no-op otherwise.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Options configures error reporting.
type Options struct {
	DSN         string
	Environment string
	Release     string
}

// Init initializes the Sentry SDK. It returns false without error when no DSN
// is configured.
func Init(opts Options) (bool, error) {
	if opts.DSN == "" {
		return false, nil
	}
	env := opts.Environment
	if env == "" {
		env = "production"
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      env,
		Release:          fmt.Sprintf("allworkouts@%s", opts.Release),
		SampleRate:       1.0,
		AttachStacktrace: true,
		// Plan text is user content and stays out of reports.
		SendDefaultPII: false,
	})
	if err != nil {
		return false, fmt.Errorf("sentry initialization failed: %w", err)
	}
	return true, nil
}

// CaptureError reports err with the given component and tags.
func CaptureError(err error, component string, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetFingerprint([]string{component, fmt.Sprintf("%T", err)})
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
