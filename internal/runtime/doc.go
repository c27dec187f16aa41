// Package runtime is the local dialogue core: it classifies replies, resolves
// placeholders and moves a State through a scenario's steps.
//
// Every operation takes a State and returns a new one; inputs are never mutated.
package runtime
