/*
Package log wraps zerolog with the handful of context loggers pgregistry
uses throughout: a component logger for subsystem tags (cluster, transport,
registry, monitor), a node logger, and two registry-specific helpers,
WithGroup and WithEndpoint, for the mutation and exchange log lines where a
group name or endpoint ID is the natural correlation key.

Init must be called once at process start, before any other package logs
anything; every logger vended by this package derives from the same global
zerolog.Logger so a single Init determines level and format process-wide.
*/
package log
