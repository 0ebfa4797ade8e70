// Package tui provides the split view parari shows while agents run.
//
// The left pane lists the agents with their status; the right pane shows the
// focused agent's log or diff. The view only reads from its Source and
// re-renders whenever the source signals an update. When the operator picks
// an agent to apply, or cancels, Run returns a Decision.
//
// Usage:
//
//	decision, err := tui.Run(ctx, handle)
//	if err != nil {
//	    return err
//	}
//	if decision.Action == tui.ActionApply {
//	    applier.Apply(ctx, handle, decision.Agent)
//	}
package tui
