/*
Package session serializes access to stored dialogue states.

Hosts that answer many callers (the HTTP backend, the MCP server) keep each
caller's domain.State in a ports.SessionStore between turns. The Manager makes
every load-advance-save cycle for a session atomic, locally with a per-session
mutex and across replicas with an optional ports.DistributedLocker.
*/
package session
