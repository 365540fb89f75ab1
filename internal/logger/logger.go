package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	entry *logrus.Entry
}

var (
	base    = newBase()
	logFile *os.File
	once    sync.Once
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// InitLogger configures the shared backend once. With a logPath, records go to a
// timestamped file in that directory. In dev mode the level drops to debug and records
// are mirrored into view.
func InitLogger(dev bool, logPath string, view io.Writer) error {
	var err error
	once.Do(func() {
		if logPath != "" {
			timestamp := time.Now().Format("20060102_150405")
			fileName := fmt.Sprintf("quill_log_%s.log", timestamp)

			logFile, err = os.OpenFile(filepath.Join(logPath, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				err = fmt.Errorf("failed to open log file: %w", err)
				return
			}
			base.SetOutput(logFile)
		}

		configure(base, dev, view)
	})
	return err
}

func configure(l *logrus.Logger, dev bool, view io.Writer) {
	if !dev {
		return
	}
	l.SetLevel(logrus.DebugLevel)
	if view != nil {
		l.AddHook(&viewHook{view: view})
	}
}

func NewLogger(tag string) *Logger {
	return &Logger{entry: base.WithField("tag", tag)}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debug(v ...interface{}) {
	l.entry.Debug(v...)
}

func (l *Logger) Info(v ...interface{}) {
	l.entry.Info(v...)
}

func (l *Logger) Warn(v ...interface{}) {
	l.entry.Warn(v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.entry.Error(v...)
}

// Close releases the log file. Later records are discarded.
func Close() {
	base.SetOutput(io.Discard)
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// viewHook mirrors records into the debug console using tview colour tags.
type viewHook struct {
	mu   sync.Mutex
	view io.Writer
}

func (h *viewHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *viewHook) Fire(entry *logrus.Entry) error {
	var format string
	switch entry.Level {
	case logrus.WarnLevel:
		format = "[yellow]DEBUG (%s): %s[-]\n"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		format = "[red]DEBUG (%s): %s[-]\n"
	default:
		format = "[green]DEBUG (%s): %s[-]\n"
	}

	msg := entry.Message
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, werr := fmt.Fprintf(h.view, format, entry.Data["tag"], msg)
	return werr
}
