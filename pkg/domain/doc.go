/*
Package domain contains the core models of the carecall dialogue engine.

It defines the scripted call scenarios, the response category table used to
classify caregiver replies, and the per-session dialogue state. The package is
kept free of I/O so that the runtime, the adapters and the hosts can share it.

# Key Entities

  - Scenario: a named call script made of ordered Steps.
  - Step: one agent line, the reply categories it accepts, and its successor.
  - Category: a named list of lowercase keywords matched by substring.
  - State: the snapshot of one dialogue (current step, context, history, messages).
  - Reply: what the engine answers to a start or a submitted turn.
*/
package domain
