/*
Package observability provides Prometheus instrumentation for the notebook core.

Metrics live on their own registry so that embedding applications can expose
them without colliding with the default global registry. Every recorder is
safe to call on a nil *Metrics, which lets components treat instrumentation as
optional.
*/
package observability
