// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires up the per-subsystem loggers used across the daemon.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jrick/logrotate/rotator"
	"github.com/shadowdag/shadowd/logs"
)

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

type errLogWriter struct{}

func (errLogWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stderr.Write(p)
		if ErrLogRotator != nil {
			ErrLogRotator.Write(p)
		}
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it write to the backend. When adding a new
// subsystem, add the variable here and to subsystemLoggers.
var (
	backendLog = logs.NewBackend([]*logs.BackendWriter{
		logs.NewAllLevelsBackendWriter(logWriter{}),
		logs.NewErrorBackendWriter(errLogWriter{}),
	})

	// LogRotator rotates the combined log output. Must be initialized via
	// InitLogRotators before the package loggers are used for file output.
	LogRotator *rotator.Rotator
	// ErrLogRotator rotates error-only output.
	ErrLogRotator *rotator.Rotator

	bdagLog = backendLog.Logger("BDAG")
	storLog = backendLog.Logger("STOR")
	dcfgLog = backendLog.Logger("DCFG")
	diffLog = backendLog.Logger("DIFF")
	peerLog = backendLog.Logger("PEER")
	cmgrLog = backendLog.Logger("CMGR")
	syncLog = backendLog.Logger("SYNC")
	txmpLog = backendLog.Logger("TXMP")
	nodeLog = backendLog.Logger("NODE")

	initiated = false
)

// SubsystemTags names every subsystem this daemon logs under.
var SubsystemTags = struct {
	BDAG,
	STOR,
	DCFG,
	DIFF,
	PEER,
	CMGR,
	SYNC,
	TXMP,
	NODE string
}{
	BDAG: "BDAG",
	STOR: "STOR",
	DCFG: "DCFG",
	DIFF: "DIFF",
	PEER: "PEER",
	CMGR: "CMGR",
	SYNC: "SYNC",
	TXMP: "TXMP",
	NODE: "NODE",
}

var subsystemLoggers = map[string]logs.Logger{
	SubsystemTags.BDAG: bdagLog,
	SubsystemTags.STOR: storLog,
	SubsystemTags.DCFG: dcfgLog,
	SubsystemTags.DIFF: diffLog,
	SubsystemTags.PEER: peerLog,
	SubsystemTags.CMGR: cmgrLog,
	SubsystemTags.SYNC: syncLog,
	SubsystemTags.TXMP: txmpLog,
	SubsystemTags.NODE: nodeLog,
}

// InitLogRotators initializes the rotating log writers. Must be called
// before relying on file output; console output works without it.
func InitLogRotators(logFile, errLogFile string) {
	initiated = true
	LogRotator = initLogRotator(logFile)
	ErrLogRotator = initLogRotator(errLogFile)
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
			os.Exit(1)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// SetLogLevel sets the level for a single subsystem. Unknown subsystems are
// ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := logs.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets every subsystem to the given level.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// Get returns the logger for a subsystem tag.
func Get(tag string) (logger logs.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// ParseAndSetDebugLevels parses a debug-level spec such as "info" or
// "BDAG=debug,PEER=trace" and applies it.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(pair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", pair)
		}
		fields := strings.SplitN(pair, "=", 2)
		subsysID, logLevel := fields[0], fields[1]
		if _, exists := Get(subsysID); !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s", subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}
		SetLogLevel(subsysID, logLevel)
	}
	return nil
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// SupportedSubsystems returns the sorted list of known subsystem tags.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}
