// Package logger builds the service-wide zap logger.
package logger

import (
	"go.uber.org/zap"
)

// New returns a production JSON logger, or a human-readable development
// logger when LOG_MODE=development.
func New(mode string) (*zap.Logger, error) {
	if mode == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
