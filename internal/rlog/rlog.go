// Package rlog is the structured logger cmd/ribbon uses: a thin wrapper
// over zap so the CLI reports pipeline stage transitions and failures in
// one consistent format instead of ad hoc fmt.Fprintf calls.
package rlog

import "go.uber.org/zap"

// New builds a sugared logger. In debug mode it uses zap's human-
// readable development encoder; otherwise the default production JSON
// encoder, matching how this corpus's services switch logging shape
// between local runs and deployed ones.
func New(debug bool) *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)

	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		// zap's own constructors only fail on a broken encoder/sink
		// config, which New here never supplies — falling back to NewNop
		// avoids a logging failure taking down the CLI or language server.
		logger = zap.NewNop()
	}

	return logger.Sugar()
}
