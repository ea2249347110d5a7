package logs

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger — общий логгер процесса. До Init пишет в stderr уровнем info.
var Logger = logrus.New()

type Options struct {
	Level  string // debug | info | warn | error
	Format string // text | json
	File   string // пусто — только stderr
}

func Init(o Options) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(o.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	switch strings.ToLower(o.Format) {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	if o.File != "" {
		f, ferr := os.OpenFile(o.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			Logger.Warnf("log file %s: %v (stderr only)", o.File, ferr)
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}
	Logger.SetOutput(out)

	if err != nil && o.Level != "" {
		Logger.Warnf("unknown log level %q, using info", o.Level)
	}
}

// Discard глушит вывод (тесты).
func Discard() {
	Logger.SetOutput(io.Discard)
}
