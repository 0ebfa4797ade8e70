package models

import "testing"

func TestAgentStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status AgentStatus
		want   bool
	}{
		{"pending is valid", AgentStatusPending, true},
		{"running is valid", AgentStatusRunning, true},
		{"succeeded is valid", AgentStatusSucceeded, true},
		{"failed is valid", AgentStatusFailed, true},
		{"cancelled is valid", AgentStatusCancelled, true},
		{"empty string is invalid", AgentStatus(""), false},
		{"unknown status is invalid", AgentStatus("unknown"), false},
		{"american spelling is invalid", AgentStatus("canceled"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("AgentStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AgentStatus
		want     bool
	}{
		{AgentStatusPending, AgentStatusRunning, true},
		{AgentStatusPending, AgentStatusFailed, true},
		{AgentStatusPending, AgentStatusCancelled, true},
		{AgentStatusPending, AgentStatusSucceeded, false},
		{AgentStatusRunning, AgentStatusSucceeded, true},
		{AgentStatusRunning, AgentStatusFailed, true},
		{AgentStatusRunning, AgentStatusCancelled, true},
		{AgentStatusRunning, AgentStatusPending, false},
		{AgentStatusSucceeded, AgentStatusFailed, false},
		{AgentStatusFailed, AgentStatusSucceeded, false},
		{AgentStatusCancelled, AgentStatusRunning, false},
		{AgentStatus("bogus"), AgentStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []AgentStatus{
		AgentStatusPending, AgentStatusRunning, AgentStatusSucceeded,
		AgentStatusFailed, AgentStatusCancelled,
	}
	for _, from := range all {
		if !from.Terminal() {
			continue
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal status %q can transition to %q", from, to)
			}
		}
	}
}

func TestRunSnapshot_Helpers(t *testing.T) {
	run := RunSnapshot{
		Agents: []AgentSnapshot{
			{Agent: "claude", Status: AgentStatusSucceeded},
			{Agent: "gemini", Status: AgentStatusRunning},
		},
	}

	if run.Terminal() {
		t.Error("Terminal() = true with a running slot")
	}
	a, ok := run.Agent("claude")
	if !ok || !a.Applicable() {
		t.Errorf("Agent(claude) = %+v, %v; want applicable", a, ok)
	}
	if _, ok := run.Agent("codex"); ok {
		t.Error("Agent(codex) found, want missing")
	}
	if got := run.Counts()[AgentStatusRunning]; got != 1 {
		t.Errorf("Counts()[running] = %d, want 1", got)
	}

	run.Agents[1].Status = AgentStatusFailed
	if !run.Terminal() {
		t.Error("Terminal() = false with all slots terminal")
	}
}

func TestDiffSummary_Empty(t *testing.T) {
	var nilSummary *DiffSummary
	if !nilSummary.Empty() {
		t.Error("nil summary should be empty")
	}
	if (&DiffSummary{FilesChanged: 2}).Empty() {
		t.Error("summary with changes reported empty")
	}
}
