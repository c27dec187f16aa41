/*
Package ports defines the driven ports (interfaces) of the carecall engine.

These interfaces decouple the dialogue core from catalog sources, session storage
and the optional remote responder.

# Key Interfaces

  - ScenarioLoader: supplies call scripts and the reply category table (embedded YAML, Loam directories).
  - SessionStore: persists dialogue State between turns for hosts that serve many callers.
  - DistributedLocker: serializes access to a session across replicas.
  - Responder: a remote backend that may answer turns instead of the local script.
*/
package ports
