// Package logger provides structured logging for kobomedia on top of zerolog.
//
// A Logger is built from config.LoggingConfig: console output (colored,
// human readable) by default, JSON when Format is "json", and an optional
// append-only log file. The package also keeps a global logger for code
// that has no logger injected.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("asset_uid", uid).Info("download started")
//
// Tests can use NewTestLogger to capture messages or NewNopLogger to
// discard them.
package logger
