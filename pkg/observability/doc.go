/*
Package observability turns engine lifecycle events into logs and Prometheus
metrics.

Metrics owns a private registry so several engines (or tests) never collide on
the global one. Hooks returns domain.LifecycleHooks that feed it; Combine fans
one event out to several hook sets.
*/
package observability
