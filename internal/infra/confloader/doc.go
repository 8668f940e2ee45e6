// Package confloader loads apanic-server configuration.
//
// Sources are layered with koanf, later sources overriding earlier ones:
//
//  1. Values already present in the target struct (defaults)
//  2. The YAML configuration file
//  3. APANIC_ environment variables
//
// Environment keys use a double underscore between levels so that keys
// containing underscores survive, for example
// APANIC_ENGINE__CAPTURE_LOCK_TIMEOUT sets engine.capture_lock_timeout.
// Variables without a double underscore fall back to one level per
// underscore (APANIC_LOG_LEVEL sets log.level).
//
// Watcher reports edits to the configuration file so that reloadable
// settings such as the log level can be applied without a restart.
package confloader
