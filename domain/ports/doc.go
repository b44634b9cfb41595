// Package ports defines the interfaces the runtime core depends on.
// Host bridges, schedulers and chunk suppliers implement them, which keeps
// the command registry and the digest engine free of transport details.
package ports
