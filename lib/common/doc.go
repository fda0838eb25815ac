// Package common provides the configuration and logging shared by the
// confcache command-line tools.
//
// Key Components:
//
//   - Config: all settings of the cli (store, encoding, logging), with a
//     sectioned String() for printing and a conversion to cache.Options.
//
//   - Logger: a dragonboat logger.ILogger with a "LEVEL | name | message"
//     format. InitLoggers installs it for the graph, cache, store and cli
//     loggers.
package common
