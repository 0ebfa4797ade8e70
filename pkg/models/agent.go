package models

import "time"

// AgentStatus represents the lifecycle state of one agent in a run.
type AgentStatus string

const (
	// AgentStatusPending indicates the agent's worktree is not ready yet.
	AgentStatusPending AgentStatus = "pending"
	// AgentStatusRunning indicates the agent process has been launched.
	AgentStatusRunning AgentStatus = "running"
	// AgentStatusSucceeded indicates the agent process exited cleanly.
	AgentStatusSucceeded AgentStatus = "succeeded"
	// AgentStatusFailed indicates the agent could not start or exited non-zero.
	AgentStatusFailed AgentStatus = "failed"
	// AgentStatusCancelled indicates the operator cancelled the run.
	AgentStatusCancelled AgentStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusPending, AgentStatusRunning, AgentStatusSucceeded,
		AgentStatusFailed, AgentStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is possible from s.
func (s AgentStatus) Terminal() bool {
	return s == AgentStatusSucceeded || s == AgentStatusFailed || s == AgentStatusCancelled
}

// validTransitions lists the allowed targets for each status.
// Terminal states map to an empty set.
var validTransitions = map[AgentStatus]map[AgentStatus]bool{
	AgentStatusPending: {
		AgentStatusRunning:   true,
		AgentStatusFailed:    true,
		AgentStatusCancelled: true,
	},
	AgentStatusRunning: {
		AgentStatusSucceeded: true,
		AgentStatusFailed:    true,
		AgentStatusCancelled: true,
	},
	AgentStatusSucceeded: {},
	AgentStatusFailed:    {},
	AgentStatusCancelled: {},
}

// CanTransition reports whether a slot may move from one status to another.
func CanTransition(from, to AgentStatus) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Reasons attached to a failed or cancelled slot.
const (
	ReasonUnavailable = "unavailable"
	ReasonWorktree    = "worktree"
	ReasonExitCode    = "exit"
	ReasonCancelled   = "cancelled"
	ReasonPanic       = "panic"
	// ReasonResult marks a slot whose changes could not be committed.
	ReasonResult      = "result"
)

// Stream identifies which output stream produced a log line.
type Stream int

const (
	StreamStdout Stream = iota
	StreamStderr
	// StreamSystem marks lines written by parari itself (status notes, errors).
	StreamSystem
)

// LogLine is one line of agent output.
type LogLine struct {
	Stream Stream    `json:"stream"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// AgentSnapshot is a point-in-time copy of one agent slot.
type AgentSnapshot struct {
	// Agent is the unique agent name within the run.
	Agent string `json:"agent"`
	// Status is the lifecycle state at snapshot time.
	Status AgentStatus `json:"status"`
	// Reason qualifies a failed or cancelled status.
	Reason string `json:"reason,omitempty"`
	// ExitCode is the agent process exit code, or -1 if it never exited.
	ExitCode int `json:"exit_code"`
	// Error is the terminal error message, if any.
	Error string `json:"error,omitempty"`
	// WorktreePath is the path of the agent's checkout.
	WorktreePath string `json:"worktree_path,omitempty"`
	// Branch is the agent's branch name.
	Branch string `json:"branch,omitempty"`
	// Log holds every line captured so far, in production order.
	Log []LogLine `json:"log"`
	// Diff is set once the agent is terminal and its diff was computed.
	Diff *DiffSummary `json:"diff,omitempty"`
	// StartedAt is when the agent process was launched.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the slot reached a terminal status.
	FinishedAt time.Time `json:"finished_at"`
}

// Applicable reports whether this slot's result may be merged.
func (a AgentSnapshot) Applicable() bool {
	return a.Status == AgentStatusSucceeded
}

// RunSnapshot is a point-in-time copy of a whole run.
type RunSnapshot struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`
	// Prompt is the shared prompt text.
	Prompt string `json:"prompt"`
	// BaseBranch is the branch every worktree was created from.
	BaseBranch string `json:"base_branch"`
	// Agents lists the slots in run order.
	Agents []AgentSnapshot `json:"agents"`
}

// Agent returns the snapshot for the named agent.
func (r RunSnapshot) Agent(name string) (AgentSnapshot, bool) {
	for _, a := range r.Agents {
		if a.Agent == name {
			return a, true
		}
	}
	return AgentSnapshot{}, false
}

// Terminal returns true once every slot is terminal.
func (r RunSnapshot) Terminal() bool {
	for _, a := range r.Agents {
		if !a.Status.Terminal() {
			return false
		}
	}
	return true
}

// Counts returns how many slots are in each status.
func (r RunSnapshot) Counts() map[AgentStatus]int {
	counts := make(map[AgentStatus]int, 5)
	for _, a := range r.Agents {
		counts[a.Status]++
	}
	return counts
}
