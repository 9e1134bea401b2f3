// Package logger provides the structured logging interface used across igsaved.
//
// It wraps zerolog. Console output is colored and goes to stderr; the json
// format writes one JSON object per line, which is what the HTTP service
// should use in production. An optional file receives every entry as well.
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	log := logger.GetLogger().WithField("component", "discovery")
//	log.InfoWithFields("Scroll revealed new posts", map[string]interface{}{
//	    "scrolls": 3,
//	    "height":  18240,
//	})
//
// Components take a Logger in their constructors. Tests pass NewNopLogger,
// or NewTestLogger when they want to assert on what was logged.
package logger
