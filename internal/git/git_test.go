package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a git repo in dir with a user config so commits work on CI.
func initTestRepo(t *testing.T, dir string) {
	t.Helper()
	cmds := [][]string{
		{"git", "-C", dir, "init", "-b", "main"},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
	}
	for _, args := range cmds {
		require.NoError(t, exec.Command(args[0], args[1:]...).Run())
	}
}

// commitFile writes content to name and commits it.
func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	require.NoError(t, exec.Command("git", "-C", dir, "add", ".").Run())
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "-m", message).Run())
}

func TestExtractOwnerRepo_SSH(t *testing.T) {
	owner, repo, err := ExtractOwnerRepo("git@github.com:revuedev/revue.git")
	assert.NoError(t, err)
	assert.Equal(t, "revuedev", owner)
	assert.Equal(t, "revue", repo)
}

func TestExtractOwnerRepo_HTTPS(t *testing.T) {
	owner, repo, err := ExtractOwnerRepo("https://github.com/revuedev/revue.git")
	assert.NoError(t, err)
	assert.Equal(t, "revuedev", owner)
	assert.Equal(t, "revue", repo)
}

func TestExtractOwnerRepo_HTTPSNoGit(t *testing.T) {
	owner, repo, err := ExtractOwnerRepo("https://github.com/revuedev/revue")
	assert.NoError(t, err)
	assert.Equal(t, "revuedev", owner)
	assert.Equal(t, "revue", repo)
}

func TestExtractOwnerRepo_Invalid(t *testing.T) {
	_, _, err := ExtractOwnerRepo("not-a-url")
	assert.Error(t, err)
}

func TestRealClient_RepoMetadata(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "file1.txt", "hello\n", "initial")

	c := NewClient()

	branch, err := c.CurrentBranch(dir)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	hash, err := c.CommitHash(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	author, err := c.Author(dir)
	require.NoError(t, err)
	assert.Equal(t, "Test", author)

	root, err := c.RepoRoot(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, root)
}

func TestRealClient_RemoteURL_NoRemote(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)

	c := NewClient()
	url, err := c.RemoteURL(dir)
	assert.NoError(t, err)
	assert.Empty(t, url)
}

func TestRealClient_ChangedFiles(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "file1.txt", "hello\n", "initial")

	// Branch off, modify one file, add another, delete nothing yet.
	require.NoError(t, exec.Command("git", "-C", dir, "checkout", "-b", "feature").Run())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file1.txt"), []byte("hello world\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file2.txt"), []byte("new file\n"), 0644))
	require.NoError(t, exec.Command("git", "-C", dir, "add", ".").Run())
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "-m", "feature changes").Run())

	c := NewClient()

	t.Run("lists committed branch changes", func(t *testing.T) {
		files, err := c.ChangedFiles(dir, "main")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"file1.txt", "file2.txt"}, files)
	})

	t.Run("includes uncommitted working tree changes", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "file3.txt"), []byte("scratch\n"), 0644))
		require.NoError(t, exec.Command("git", "-C", dir, "add", "file3.txt").Run())

		files, err := c.ChangedFiles(dir, "main")
		require.NoError(t, err)
		assert.Contains(t, files, "file3.txt")
	})

	t.Run("excludes deleted files", func(t *testing.T) {
		require.NoError(t, exec.Command("git", "-C", dir, "rm", "file2.txt").Run())

		files, err := c.ChangedFiles(dir, "main")
		require.NoError(t, err)
		assert.NotContains(t, files, "file2.txt")
	})
}

func TestRealClient_ChangedFiles_NoChanges(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "file1.txt", "hello\n", "initial")

	c := NewClient()
	files, err := c.ChangedFiles(dir, "main")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRealClient_Diff(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "file1.txt", "hello\n", "initial")

	require.NoError(t, exec.Command("git", "-C", dir, "checkout", "-b", "feature").Run())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file1.txt"), []byte("hello world\n"), 0644))
	require.NoError(t, exec.Command("git", "-C", dir, "add", ".").Run())
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "-m", "feature changes").Run())

	c := NewClient()
	diff, err := c.Diff(dir, "main", "file1.txt")
	require.NoError(t, err)
	assert.Contains(t, diff, "-hello")
	assert.Contains(t, diff, "+hello world")
}
