// Package logging provides the logging facade used by the casm bindings.
//
// Logger is a small, context-aware interface. Two backends are provided:
//
//	// log/slog, binding to slog.Default() when passed nil
//	logger := logging.New(nil)
//
//	// go.uber.org/zap
//	zl, _ := zap.NewProduction()
//	logger := logging.NewZap(zl)
//
// Nop discards everything and is the default for a casm.Library built
// without a logger.
//
// Session readiness and the handle lifecycle are logged at debug level. Handles
// reclaimed by a finalizer instead of an explicit Close, and native status
// values outside the known range, are logged at warn level.
package logging
