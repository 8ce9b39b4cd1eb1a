package report

import (
	"os"
	"runtime"

	"github.com/getsentry/sentry-go"
)

// ConfigureScope tags every later event with the deployment and runtime.
func ConfigureScope(env, version string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("env", env)
		scope.SetTag("app_version", version)
		scope.SetTag("go_version", runtime.Version())
		scope.SetTag("goarch", runtime.GOARCH)
		scope.SetContext("host_info", map[string]interface{}{
			"hostname": hostname(),
		})
	})
}

// SetCollectionVersion records the version of the venue collection now
// being served. It is called at startup and after every successful reload.
func SetCollectionVersion(collectionVersion string) {
	if collectionVersion == "" {
		collectionVersion = "unversioned"
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("collection_version", collectionVersion)
	})
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// SentryReportOptions provides optional data for reporting.
type SentryReportOptions struct {
	ExtraContext map[string]interface{}
	Tags         map[string]string
	Level        sentry.Level
}

// ReportError reports err at the given level, sentry.LevelError by default.
func ReportError(err error, levels ...sentry.Level) {
	opts := SentryReportOptions{Level: sentry.LevelError}
	if len(levels) > 0 {
		opts.Level = levels[0]
	}
	ReportErrorWithSentryOptions(err, opts)
}

// ReportErrorWithSentryOptions reports err with extra tags, context and level.
func ReportErrorWithSentryOptions(err error, opts SentryReportOptions) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if opts.ExtraContext != nil {
			scope.SetContext("extra", opts.ExtraContext)
		}
		for k, v := range opts.Tags {
			scope.SetTag(k, v)
		}
		if opts.Level != "" {
			scope.SetLevel(opts.Level)
		}
		sentry.CaptureException(err)
	})
}

// ReportVenueLoadError reports a failed load of the venue collection from
// source. previousVersion is the collection still being served, empty when
// nothing was loaded before.
func ReportVenueLoadError(err error, source, previousVersion string, level sentry.Level) {
	extra := map[string]interface{}{"fallback": "empty collection"}
	if previousVersion != "" {
		extra["fallback"] = "previous collection"
		extra["previous_version"] = previousVersion
	}
	ReportErrorWithSentryOptions(err, SentryReportOptions{
		Tags:         map[string]string{"venue_source": source},
		ExtraContext: extra,
		Level:        level,
	})
}
