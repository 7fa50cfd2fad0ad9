// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log wires the per-package loggers of the sub-block assembly core
// together into a single backend, the way btcd's internal/log package
// wires the loggers of its subsystems.
package log

import (
	"io"

	"github.com/btcsuite/btclog"

	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
	"github.com/Greg-Griffith/BitcoinUnlimited/slptoken"
	"github.com/Greg-Griffith/BitcoinUnlimited/subblock"
)

// backendLog is the logging backend used to create all subsystem loggers.
// It discards output until the caller redirects it with InitBackend.
var backendLog = btclog.NewBackend(io.Discard)

var (
	// SblkLog is the sub-block assembler's logger (C1-C7).
	SblkLog = backendLog.Logger("SBLK")

	// TxmpLog is the mempool logger.
	TxmpLog = backendLog.Logger("TXMP")

	// SlpcLog is the token cache overlay's logger.
	SlpcLog = backendLog.Logger("SLPC")
)

// SubsystemLoggers maps each subsystem identifier to its associated logger.
var SubsystemLoggers = map[string]btclog.Logger{
	"SBLK": SblkLog,
	"TXMP": TxmpLog,
	"SLPC": SlpcLog,
}

func init() {
	subblock.UseLogger(SblkLog)
	mempool.UseLogger(TxmpLog)
	slptoken.UseLogger(SlpcLog)
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := SubsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for every subsystem logger.
func SetLogLevels(logLevel string) {
	for subsystemID := range SubsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// InitBackend redirects all subsystem loggers to w and re-registers them
// with the packages that own them. It must be called before SetLogLevels
// if the caller wants anything other than the default silence.
func InitBackend(w io.Writer) {
	backendLog = btclog.NewBackend(w)
	SblkLog = backendLog.Logger("SBLK")
	TxmpLog = backendLog.Logger("TXMP")
	SlpcLog = backendLog.Logger("SLPC")

	SubsystemLoggers["SBLK"] = SblkLog
	SubsystemLoggers["TXMP"] = TxmpLog
	SubsystemLoggers["SLPC"] = SlpcLog

	subblock.UseLogger(SblkLog)
	mempool.UseLogger(TxmpLog)
	slptoken.UseLogger(SlpcLog)
}
