// Package cmd is the transport-agnostic command core. A command has a name, a
// description and Run(ctx, invocation); adapters (Discord slash commands,
// prefix messages) decide how it is registered and dispatched.
package cmd

import "context"

// Invocation carries what any runner can pass: the parsed arguments and an
// opaque adapter payload (for Discord, the event context).
type Invocation struct {
	Args []string
	Data any
}

// Arg returns the i-th argument or "" when absent.
func (inv *Invocation) Arg(i int) string {
	if inv == nil || i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Command is the universal contract: identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Aliased is implemented by commands reachable under extra names.
type Aliased interface {
	Aliases() []string
}
