package services

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger - 타임스탬프 포함 로거 생성
// level: "debug" | "info" | "warn" | "error" (알 수 없으면 info)
func NewLogger(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           lvl,
	})
}

// discardLogger is used when a component is built without a logger.
func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func orDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return discardLogger()
	}
	return l
}
