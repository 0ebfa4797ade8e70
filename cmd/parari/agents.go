package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/parari/internal/config"
	perrors "github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/executor"
)

// runFlags are the root command's agent selection and apply flags.
type runFlags struct {
	agents     []string
	claudeOnly bool
	geminiOnly bool
	codexOnly  bool
	noSelect   bool
	autoSelect bool
}

// agentNames returns the agents to run and whether the operator named them
// explicitly. Explicitly named agents that are not installed still get a
// slot, which fails as unavailable.
func agentNames(f runFlags, cfg *config.Config) ([]string, bool) {
	switch {
	case f.claudeOnly:
		return []string{"claude"}, true
	case f.geminiOnly:
		return []string{"gemini"}, true
	case f.codexOnly:
		return []string{"codex"}, true
	case len(f.agents) > 0:
		return f.agents, true
	default:
		return cfg.Agents.Enabled, false
	}
}

// buildRegistry returns the built-in agents plus any declared in config.
func buildRegistry(cfg *config.Config) *executor.Registry {
	grace := executor.WithGrace(cfg.Execution.GracePeriod)
	reg := executor.Builtin(grace)
	for _, a := range cfg.Agents.Custom {
		reg.Register(executor.NewCommand(a.Name, a.Command, a.Args, grace, executor.WithEnv(envList(a.Env)...)))
	}
	return reg
}

// selectExecutors resolves names against reg. It fails with ErrNoExecutors
// when none of the named agents can be launched.
func selectExecutors(reg *executor.Registry, names []string, explicit bool) ([]executor.Executor, error) {
	execs, err := reg.Select(names)
	if err != nil {
		return nil, err
	}

	available := executor.Available(execs)
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: none of %s could be found on PATH", perrors.ErrNoExecutors, strings.Join(names, ", "))
	}
	if explicit {
		return execs, nil
	}
	return available, nil
}

// envList renders env as sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
