package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/executor"
	"github.com/ShayCichocki/parari/internal/git"
	"github.com/ShayCichocki/parari/internal/testutil"
	"github.com/ShayCichocki/parari/internal/worktree"
	"github.com/ShayCichocki/parari/pkg/models"
)

const testTimeout = 30 * time.Second

type fixture struct {
	repo    string
	manager *worktree.Manager
	coord   *Coordinator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repo := testutil.NewRepo(t)
	m, err := worktree.NewManager(filepath.Join(t.TempDir(), "worktrees"), repo)
	require.NoError(t, err)
	opts = append([]Option{WithRepo(git.NewRunner(repo))}, opts...)
	return &fixture{repo: repo, manager: m, coord: New(m, opts...)}
}

// assertNoLeak checks that every created worktree was removed.
func (f *fixture) assertNoLeak(t *testing.T) {
	t.Helper()
	stats := f.manager.Stats()
	assert.Equal(t, stats.Created, stats.Removed, "created and removed worktree counts differ")
	managed, err := f.manager.Managed()
	require.NoError(t, err)
	assert.Empty(t, managed, "git still lists parari worktrees")
	entries, err := os.ReadDir(f.manager.BaseDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "worktree directory not empty")
}

func await(t *testing.T, h *Handle) models.RunSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	snap, err := h.AwaitAll(ctx)
	require.NoError(t, err, "run did not finish")
	return snap
}

// flakyProvider fails Create for selected agents and delegates otherwise.
type flakyProvider struct {
	worktree.Provider
	fail map[string]bool
}

func (p *flakyProvider) Create(baseBranch, runID, agent string) (*worktree.Worktree, error) {
	if p.fail[agent] {
		return nil, errors.NewFilesystemError("create worktree", agent, os.ErrPermission)
	}
	return p.Provider.Create(baseBranch, runID, agent)
}

// stickyProvider fails the first Remove of every worktree.
type stickyProvider struct {
	worktree.Provider
	mu    sync.Mutex
	tried map[string]bool
}

func (p *stickyProvider) Remove(wt *worktree.Worktree) error {
	p.mu.Lock()
	first := !p.tried[wt.Path]
	p.tried[wt.Path] = true
	p.mu.Unlock()
	if first {
		return errors.NewFilesystemError("remove worktree", wt.Path, os.ErrPermission)
	}
	return p.Provider.Remove(wt)
}

// panicky is an executor whose Run panics.
type panicky struct{ name string }

func (p panicky) Name() string     { return p.name }
func (p panicky) Available() error { return nil }
func (p panicky) Run(context.Context, string, string, chan<- models.LogLine) executor.Outcome {
	panic("boom")
}

func TestRunSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		execs   []executor.Executor
		wantErr bool
	}{
		{"empty", nil, true},
		{"single", []executor.Executor{executor.NewFake("claude")}, false},
		{"duplicate", []executor.Executor{executor.NewFake("claude"), executor.NewFake("claude")}, true},
		{"blank name", []executor.Executor{executor.NewFake(" ")}, true},
		{"distinct", []executor.Executor{executor.NewFake("claude"), executor.NewFake("gemini")}, false},
		{"same worktree name", []executor.Executor{executor.NewFake("my agent"), executor.NewFake("my-agent")}, true},
		{"case only", []executor.Executor{executor.NewFake("Claude"), executor.NewFake("claude")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunSet{Prompt: "p", Executors: tt.execs}.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.ErrorIs(t, RunSet{}.Validate(), errors.ErrNoExecutors)

	f := newFixture(t)
	_, err := f.coord.Start(context.Background(), RunSet{Prompt: "p",
		Executors: []executor.Executor{executor.NewFake("my agent"), executor.NewFake("my-agent")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "my-agent")
	assert.Zero(t, f.manager.Stats().Created)
}

func TestNewRunID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := NewRunID()
		assert.Len(t, id, 25)
		assert.NotContains(t, id, "-")
		assert.False(t, seen[id], "duplicate run ID %s", id)
		seen[id] = true
	}
}

func TestStart_RejectsInvalidRunSet(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Start(context.Background(), RunSet{Prompt: "p"})
	assert.ErrorIs(t, err, errors.ErrNoExecutors)
	assert.Zero(t, f.manager.Stats().Created)
}

func TestRun_SucceededAndFailed(t *testing.T) {
	f := newFixture(t)
	claude := executor.NewFake("claude").
		WithFile("feature.go", "package feature\n").
		WithOutput("wrote feature.go")
	gemini := executor.NewFake("gemini").
		WithStderr("quota exceeded").
		WithExitCode(1)

	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "add a feature", Executors: []executor.Executor{claude, gemini}})
	require.NoError(t, err)
	assert.Equal(t, "main", h.BaseBranch())
	assert.Equal(t, []string{"claude", "gemini"}, h.Agents())

	snap := await(t, h)
	require.Len(t, snap.Agents, 2)
	assert.True(t, snap.Terminal())

	c := snap.Agents[0]
	assert.Equal(t, models.AgentStatusSucceeded, c.Status)
	require.NotNil(t, c.Diff)
	assert.Equal(t, 1, c.Diff.FilesAdded)
	assert.Equal(t, []string{"feature.go"}, c.Diff.ChangedFiles)
	require.NotEmpty(t, c.Log)
	assert.Equal(t, "wrote feature.go", c.Log[0].Text)
	assert.True(t, c.Applicable())

	g := snap.Agents[1]
	assert.Equal(t, models.AgentStatusFailed, g.Status)
	assert.Equal(t, models.ReasonExitCode, g.Reason)
	assert.Equal(t, 1, g.ExitCode)
	assert.Contains(t, g.Error, "quota exceeded")

	assert.Equal(t, []executor.Call{{Dir: c.WorktreePath, Prompt: "add a feature"}}, claude.Calls())

	// Worktrees survive until teardown so the result can be applied.
	wt, ok := h.Worktree("claude")
	require.True(t, ok)
	assert.DirExists(t, wt.Path)
	assert.NotEqual(t, f.repo, wt.Path)

	require.NoError(t, h.Teardown())
	require.NoError(t, h.Teardown(), "second teardown must be a no-op")
	assert.NoDirExists(t, wt.Path)
	f.assertNoLeak(t)
}

func TestRun_CancelWhileRunning(t *testing.T) {
	f := newFixture(t)
	a := executor.NewFake("claude").WithOutput("thinking").Blocking()
	b := executor.NewFake("codex").Blocking()

	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{a, b}})
	require.NoError(t, err)

	for _, fake := range []*executor.Fake{a, b} {
		select {
		case <-fake.Started():
		case <-time.After(testTimeout):
			t.Fatalf("%s never started", fake.Name())
		}
	}

	require.NoError(t, h.Cancel())

	snap := h.Snapshot()
	for _, agent := range snap.Agents {
		assert.Equal(t, models.AgentStatusCancelled, agent.Status, agent.Agent)
		assert.Equal(t, models.ReasonCancelled, agent.Reason, agent.Agent)
		assert.NoDirExists(t, agent.WorktreePath, agent.Agent)
	}
	f.assertNoLeak(t)
}

func TestRun_ParentContextCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	fake := executor.NewFake("claude").Blocking()

	h, err := f.coord.Start(ctx, RunSet{Prompt: "p", Executors: []executor.Executor{fake}})
	require.NoError(t, err)
	<-fake.Started()
	cancel()

	snap := await(t, h)
	assert.Equal(t, models.AgentStatusCancelled, snap.Agents[0].Status)
	require.NoError(t, h.Teardown())
	f.assertNoLeak(t)
}

func TestRun_WorktreeFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	provider := &flakyProvider{Provider: f.manager, fail: map[string]bool{"gemini": true}}
	coord := New(provider, WithRepo(git.NewRunner(f.repo)))

	h, err := coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{
		executor.NewFake("claude").WithFile("a.txt", "a"),
		executor.NewFake("gemini"),
	}})
	require.NoError(t, err)

	snap := await(t, h)
	assert.Equal(t, models.AgentStatusSucceeded, snap.Agents[0].Status)
	assert.Equal(t, models.AgentStatusFailed, snap.Agents[1].Status)
	assert.Equal(t, models.ReasonWorktree, snap.Agents[1].Reason)
	assert.NotEmpty(t, snap.Agents[1].Log, "failure should be visible in the log")
	assert.True(t, snap.Agents[1].StartedAt.IsZero(), "failed slot never ran")

	require.NoError(t, h.Teardown())
	f.assertNoLeak(t)
}

func TestRun_UnavailableExecutor(t *testing.T) {
	f := newFixture(t)
	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{
		executor.NewFake("ghost").Unavailable(),
		executor.NewFake("claude"),
	}})
	require.NoError(t, err)

	snap := await(t, h)
	assert.Equal(t, models.AgentStatusFailed, snap.Agents[0].Status)
	assert.Equal(t, models.ReasonUnavailable, snap.Agents[0].Reason)
	assert.Empty(t, snap.Agents[0].WorktreePath)
	assert.Equal(t, models.AgentStatusSucceeded, snap.Agents[1].Status)
	assert.Equal(t, 1, f.manager.Stats().Created)

	require.NoError(t, h.Teardown())
	f.assertNoLeak(t)
}

func TestRun_PanicIsIsolated(t *testing.T) {
	f := newFixture(t)
	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{
		panicky{name: "broken"},
		executor.NewFake("claude").WithOutput("ok"),
	}})
	require.NoError(t, err)

	snap := await(t, h)
	assert.Equal(t, models.AgentStatusFailed, snap.Agents[0].Status)
	assert.Equal(t, models.ReasonPanic, snap.Agents[0].Reason)
	assert.Equal(t, models.AgentStatusSucceeded, snap.Agents[1].Status)

	require.NoError(t, h.Teardown())
	f.assertNoLeak(t)
}

func TestRun_LogOrderPreserved(t *testing.T) {
	f := newFixture(t)
	var lines []string
	for i := 0; i < 500; i++ {
		lines = append(lines, fmt.Sprintf("line %03d", i))
	}
	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{
		executor.NewFake("claude").WithOutput(lines...),
	}})
	require.NoError(t, err)
	defer h.Teardown()

	snap := await(t, h)
	var got []string
	for _, l := range snap.Agents[0].Log {
		got = append(got, l.Text)
	}
	assert.Equal(t, lines, got)
}

func TestRun_StatusIsMonotonic(t *testing.T) {
	f := newFixture(t)
	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{
		executor.NewFake("claude").WithOutput("a", "b", "c").WithDelay(time.Millisecond),
		executor.NewFake("gemini").WithExitCode(2),
		executor.NewFake("ghost").Unavailable(),
	}})
	require.NoError(t, err)
	defer h.Teardown()

	last := make(map[string]models.AgentStatus)
	observe := func() {
		for _, a := range h.Snapshot().Agents {
			prev, ok := last[a.Agent]
			if ok && prev != a.Status {
				assert.True(t, models.CanTransition(prev, a.Status),
					"%s moved %s -> %s", a.Agent, prev, a.Status)
			}
			last[a.Agent] = a.Status
		}
	}

	timeout := time.After(testTimeout)
	for {
		observe()
		select {
		case <-h.Updates():
		case <-h.Done():
			observe()
			for agent, status := range last {
				assert.True(t, status.Terminal(), "%s ended %s", agent, status)
			}
			return
		case <-timeout:
			t.Fatal("run did not finish")
		}
	}
}

func TestHandle_UpdatesCoalesce(t *testing.T) {
	f := newFixture(t)
	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{
		executor.NewFake("claude").WithOutput(strings.Split("a b c d e f g", " ")...),
	}})
	require.NoError(t, err)
	defer h.Teardown()

	await(t, h)
	assert.Equal(t, 1, cap(h.Updates()))
	assert.LessOrEqual(t, len(h.Updates()), 1)
}

func TestHandle_Accessors(t *testing.T) {
	f := newFixture(t, WithRunID("run1"), WithBaseBranch("main"))
	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{executor.NewFake("claude")}})
	require.NoError(t, err)
	defer h.Teardown()
	await(t, h)

	assert.Equal(t, "run1", h.RunID())
	assert.Equal(t, "p", h.Prompt())

	slot, ok := h.Slot("claude")
	require.True(t, ok)
	assert.Equal(t, worktree.BranchName("run1", "claude"), slot.Branch)

	_, ok = h.Slot("nobody")
	assert.False(t, ok)
	_, ok = h.Worktree("nobody")
	assert.False(t, ok)
}

func TestRun_ManyAgentsNoLeak(t *testing.T) {
	f := newFixture(t)
	var execs []executor.Executor
	for i := 0; i < 6; i++ {
		fake := executor.NewFake(fmt.Sprintf("agent%d", i)).WithFile(fmt.Sprintf("f%d.txt", i), "x")
		if i%3 == 1 {
			fake.WithExitCode(1)
		}
		execs = append(execs, fake)
	}

	h, err := f.coord.Start(context.Background(), RunSet{Prompt: "p", Executors: execs})
	require.NoError(t, err)
	await(t, h)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Teardown())
		}()
	}
	wg.Wait()
	f.assertNoLeak(t)
}

func TestTeardown_RetriesFailedRemoval(t *testing.T) {
	f := newFixture(t)
	provider := &stickyProvider{Provider: f.manager, tried: map[string]bool{}}
	coord := New(provider, WithRepo(git.NewRunner(f.repo)))

	h, err := coord.Start(context.Background(), RunSet{Prompt: "p", Executors: []executor.Executor{
		executor.NewFake("claude").WithFile("a.txt", "a"),
	}})
	require.NoError(t, err)
	await(t, h)

	wt, ok := h.Worktree("claude")
	require.True(t, ok)

	require.Error(t, h.Teardown())
	assert.DirExists(t, wt.Path)

	require.NoError(t, h.Teardown())
	assert.NoDirExists(t, wt.Path)
	require.NoError(t, h.Teardown())
	f.assertNoLeak(t)
}
