package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/installment-tracker/internal/config"
)

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldPlanID    = "plan_id"
	FieldIndex     = "installment_index"
	FieldRequestID = "request_id"
	FieldError     = "error"
)

// New builds the application logger from LOG_LEVEL and LOG_FORMAT.
// An unknown level falls back to info.
func New(cfg config.LoggingConfig) *logrus.Logger {
	return NewWithOutput(cfg, os.Stdout)
}

func NewWithOutput(cfg config.LoggingConfig, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(cfg.Format, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

// Component returns an entry tagged with the component name.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField(FieldComponent, name)
}
