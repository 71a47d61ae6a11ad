/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	// Debugw logs a message with key value pairs.
	Debugw(msg string, keysAndValues ...interface{})
	// IsDebugEnabled avoids building expensive debug arguments.
	IsDebugEnabled() bool
}

// this is a safeguard, breaking on compile time in case
// `zapLogger` does not adhere to our `Logger` interface.
var _ Logger = (*zapLogger)(nil)

type zapLogger struct {
	*zap.SugaredLogger
	debug bool
}

func (l *zapLogger) Printf(format string, v ...interface{}) {
	l.Infof(format, v...)
}

func (l *zapLogger) IsDebugEnabled() bool {
	return l.debug
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		return NopLogger()
	}
	return &zapLogger{
		SugaredLogger: logger.Sugar(),
		debug:         logger.Core().Enabled(zapcore.DebugLevel),
	}
}

// NewLevelLogger builds a json zap logger at level: debug, info, warn or error.
func NewLevelLogger(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}

// DefaultLogger returns an info level zap logger.
func DefaultLogger() Logger {
	l, err := NewLevelLogger("info")
	if err != nil {
		return NopLogger()
	}
	return l
}

// NopLogger discards everything.
func NopLogger() Logger {
	return &zapLogger{SugaredLogger: zap.NewNop().Sugar()}
}

func NewLogger(custom Logger) Logger {
	if custom != nil {
		return custom
	}
	return DefaultLogger()
}
