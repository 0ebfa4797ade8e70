package result

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/parari/internal/git"
	"github.com/ShayCichocki/parari/internal/testutil"
	"github.com/ShayCichocki/parari/pkg/models"
)

func TestRecord(t *testing.T) {
	dir := testutil.NewRepo(t)
	runner := git.NewRunner(dir)

	committed, err := Record(runner, "claude")
	if err != nil {
		t.Fatalf("Record() on clean tree error = %v", err)
	}
	if committed {
		t.Error("Record() on clean tree committed")
	}

	testutil.WriteFile(t, dir, "new.txt", "hello\n")
	testutil.WriteFile(t, dir, "README.md", "# changed\n")

	committed, err = Record(runner, "claude")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !committed {
		t.Fatal("Record() did not commit a dirty tree")
	}
	if dirty, _ := runner.HasChanges(); dirty {
		t.Error("tree still dirty after Record()")
	}
	if msg := testutil.Git(t, dir, "log", "-1", "--format=%s"); msg != CommitMessage("claude") {
		t.Errorf("commit message = %q, want %q", msg, CommitMessage("claude"))
	}
}

func TestRecord_FallbackIdentity(t *testing.T) {
	dir := testutil.NewRepo(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	testutil.Git(t, dir, "config", "--unset", "user.email")
	testutil.Git(t, dir, "config", "--unset", "user.name")

	testutil.WriteFile(t, dir, "a.txt", "a\n")
	if _, err := Record(git.NewRunner(dir), "codex"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if email := testutil.Git(t, dir, "log", "-1", "--format=%ae"); email != FallbackEmail {
		t.Errorf("author email = %q, want %q", email, FallbackEmail)
	}
}

func TestSummarize(t *testing.T) {
	dir := testutil.NewRepo(t)
	testutil.WriteFile(t, dir, "keep.txt", "keep\n")
	testutil.WriteFile(t, dir, "gone.txt", "gone\n")
	testutil.CommitAll(t, dir, "fixtures")
	runner := git.NewRunner(dir)
	base, err := runner.RevParse("HEAD")
	if err != nil {
		t.Fatal(err)
	}

	testutil.WriteFile(t, dir, "keep.txt", "kept and edited\n")
	testutil.Git(t, dir, "rm", "-q", "gone.txt")
	testutil.WriteFile(t, dir, "committed.txt", "c\n")
	testutil.CommitAll(t, dir, "agent work")
	testutil.WriteFile(t, dir, "untracked.txt", "u\n")

	got, err := Summarize(runner, base)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if got.BaseCommit != base {
		t.Errorf("BaseCommit = %q, want %q", got.BaseCommit, base)
	}
	if got.FilesAdded != 2 || got.FilesModified != 1 || got.FilesDeleted != 1 {
		t.Errorf("counts = +%d ~%d -%d, want +2 ~1 -1", got.FilesAdded, got.FilesModified, got.FilesDeleted)
	}
	if got.FilesChanged != 4 {
		t.Errorf("FilesChanged = %d, want 4", got.FilesChanged)
	}
	want := []string{"committed.txt", "gone.txt", "keep.txt", "untracked.txt"}
	if strings.Join(got.ChangedFiles, ",") != strings.Join(want, ",") {
		t.Errorf("ChangedFiles = %v, want %v", got.ChangedFiles, want)
	}
	if !strings.Contains(got.Diff, "+kept and edited") {
		t.Errorf("Diff missing edit:\n%s", got.Diff)
	}

	again, err := Summarize(runner, base)
	if err != nil {
		t.Fatal(err)
	}
	if again.Diff != got.Diff || strings.Join(again.ChangedFiles, ",") != strings.Join(got.ChangedFiles, ",") {
		t.Error("Summarize() is not stable across calls")
	}
}

func TestSummarize_NoChanges(t *testing.T) {
	dir := testutil.NewRepo(t)
	runner := git.NewRunner(dir)
	base, _ := runner.RevParse("HEAD")

	got, err := Summarize(runner, base)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Empty() {
		t.Errorf("Summarize() on untouched tree = %+v, want empty", got)
	}
	if FormatDiff(got) != NoChanges {
		t.Errorf("FormatDiff() = %q, want %q", FormatDiff(got), NoChanges)
	}
}

func TestEmoji(t *testing.T) {
	tests := []struct {
		agent string
		want  string
	}{
		{"claude", "🤖"},
		{"Gemini", "✨"},
		{"codex", "📦"},
		{"aider", "💻"},
	}
	for _, tt := range tests {
		if got := Emoji(tt.agent); got != tt.want {
			t.Errorf("Emoji(%q) = %q, want %q", tt.agent, got, tt.want)
		}
	}
}

func TestFormatLog(t *testing.T) {
	snap := models.AgentSnapshot{
		Agent:  "claude",
		Status: models.AgentStatusSucceeded,
		Log: []models.LogLine{
			{Stream: models.StreamStdout, Text: "\x1b[32mgreen\x1b[0m"},
			{Stream: models.StreamStderr, Text: "warn\r"},
		},
		Diff: &models.DiffSummary{FilesChanged: 2, FilesAdded: 1, FilesModified: 1},
	}

	got := FormatLog(snap)
	for _, want := range []string{
		"🤖 claude - Succeeded\n" + strings.Repeat("=", 50),
		"Files changed: 2",
		"+ Added:       1",
		"~ Modified:    1",
		"green\n",
		"[stderr] warn\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatLog() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Error("FormatLog() kept ANSI escapes")
	}
}

func TestFormatLog_Empty(t *testing.T) {
	got := FormatLog(models.AgentSnapshot{Agent: "x", Status: models.AgentStatusFailed, Error: "boom"})
	if !strings.Contains(got, NoOutput) {
		t.Errorf("FormatLog() missing %q", NoOutput)
	}
	if !strings.Contains(got, "Error: boom") {
		t.Error("FormatLog() missing error line")
	}
	if strings.Contains(got, "Summary:") {
		t.Error("FormatLog() shows a summary without a diff")
	}
}

func TestFormatDiff(t *testing.T) {
	if got := FormatDiff(nil); got != NoChanges {
		t.Errorf("FormatDiff(nil) = %q", got)
	}
	d := &models.DiffSummary{FilesChanged: 1, FilesModified: 1, Diff: "diff --git a/x b/x\n"}
	if got := FormatDiff(d); got != d.Diff {
		t.Errorf("FormatDiff() = %q, want raw diff", got)
	}
	untracked := &models.DiffSummary{FilesChanged: 1, FilesAdded: 1, ChangedFiles: []string{"n.txt"}}
	if got := FormatDiff(untracked); !strings.Contains(got, "n.txt") {
		t.Errorf("FormatDiff() = %q, want untracked file listed", got)
	}
}
