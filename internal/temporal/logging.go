package temporal

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

// TemporalAdapter writes SDK log lines through zerolog. SDK keys such as WorkflowID or
// ActivityType are renamed to workflow_id and activity_type so worker logs line up with the
// job_id and tenant_id fields the rest of the service emits.
type TemporalAdapter struct {
	logger zerolog.Logger
}

func NewTemporalAdapter(logger zerolog.Logger) log.Logger {
	return &TemporalAdapter{
		logger: logger.With().Str("component", "temporal-sdk").Logger(),
	}
}

func (a *TemporalAdapter) Debug(msg string, keyvals ...interface{}) {
	fields(a.logger.Debug(), keyvals).Msg(msg)
}

func (a *TemporalAdapter) Info(msg string, keyvals ...interface{}) {
	fields(a.logger.Info(), keyvals).Msg(msg)
}

func (a *TemporalAdapter) Warn(msg string, keyvals ...interface{}) {
	fields(a.logger.Warn(), keyvals).Msg(msg)
}

func (a *TemporalAdapter) Error(msg string, keyvals ...interface{}) {
	fields(a.logger.Error(), keyvals).Msg(msg)
}

// With returns a logger that adds keyvals to every entry.
func (a *TemporalAdapter) With(keyvals ...interface{}) log.Logger {
	ctx := a.logger.With()
	eachPair(keyvals, func(key string, value interface{}) {
		if err, ok := value.(error); ok {
			ctx = ctx.AnErr(key, err)
			return
		}
		ctx = ctx.Interface(key, value)
	})
	return &TemporalAdapter{logger: ctx.Logger()}
}

func fields(event *zerolog.Event, keyvals []interface{}) *zerolog.Event {
	eachPair(keyvals, func(key string, value interface{}) {
		if err, ok := value.(error); ok {
			event = event.AnErr(key, err)
			return
		}
		event = event.Interface(key, value)
	})
	return event
}

// eachPair walks keyvals two at a time. A trailing key gets MISSING_VALUE and non-string keys
// are logged as INVALID_KEY.
func eachPair(keyvals []interface{}, fn func(key string, value interface{})) {
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = "INVALID_KEY"
		}
		var value interface{} = "MISSING_VALUE"
		if i+1 < len(keyvals) {
			value = keyvals[i+1]
		}
		fn(fieldName(key), value)
	}
}

// fieldName converts CamelCase keys to snake_case, keeping acronyms together: RunID becomes
// run_id and HTTPStatus becomes http_status.
func fieldName(key string) string {
	runes := []rune(key)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
