// Package driving defines the interfaces that external actors use to
// drive the core (primary/inbound ports). The CLI adapter and the watch
// loop call these; core services implement them.
package driving
