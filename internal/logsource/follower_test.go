package logsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/actwatch/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, fs afero.Fs, path string, mod time.Time) {
	t.Helper()
	appendTo(t, fs, path, "")
	require.NoError(t, fs.Chtimes(path, mod, mod))
}

func TestLatestFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	_, err := LatestFile(fs, "/missing")
	assert.Error(t, err)

	require.NoError(t, fs.MkdirAll("/logs/archive", 0o755))
	_, err = LatestFile(fs, "/logs")
	assert.ErrorIs(t, err, domain.ErrNoLogFiles)

	touch(t, fs, "/logs/Network_a.log", base)
	touch(t, fs, "/logs/Network_c.log", base.Add(-time.Hour))
	touch(t, fs, "/logs/Network_b.log", base)

	got, err := LatestFile(fs, "/logs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/logs", "Network_b.log"), got)
}

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func runFollower(t *testing.T, f *Follower) (*collector, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, c.add) }()
	return c, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("follower did not stop")
		}
	}
}

func waitReady(t *testing.T, f *Follower) {
	t.Helper()
	select {
	case <-f.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("follower never became ready")
	}
}

func TestFollowerSwitchesToNewerFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := time.Now()
	first := "/logs/Network_1.log"
	second := "/logs/Network_2.log"

	appendTo(t, fs, first, "skipped\n")
	require.NoError(t, fs.Chtimes(first, base, base))

	f := NewFollower(fs, "/logs",
		WithPollInterval(5*time.Millisecond),
		WithRefreshInterval(20*time.Millisecond))
	c, stop := runFollower(t, f)
	defer stop()
	waitReady(t, f)

	appendTo(t, fs, first, "one\n")
	require.Eventually(t, func() bool { return len(c.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

	appendTo(t, fs, second, "two\nthree\n")
	later := base.Add(time.Minute)
	require.NoError(t, fs.Chtimes(second, later, later))

	require.Eventually(t, func() bool { return len(c.get()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, c.get())
}

func TestFollowerWaitsForFirstFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/logs", 0o755))

	f := NewFollower(fs, "/logs",
		WithStartAtEnd(false),
		WithPollInterval(5*time.Millisecond),
		WithRefreshInterval(20*time.Millisecond))
	c, stop := runFollower(t, f)
	defer stop()

	select {
	case <-f.Ready():
		t.Fatal("ready without a file")
	case <-time.After(50 * time.Millisecond):
	}

	appendTo(t, fs, "/logs/Network_1.log", "hello\n")
	waitReady(t, f)
	require.Eventually(t, func() bool { return len(c.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestFollowerFailsOnUnreadableDirectory(t *testing.T) {
	f := NewFollower(afero.NewMemMapFs(), "/nope")
	err := f.Run(context.Background(), func(string) {})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNoLogFiles))
}

func TestFollowerWithWatcherOnDisk(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Network_1.log"), []byte("old\n"), 0o600))

	f := NewFollower(fs, dir,
		WithPollInterval(5*time.Millisecond),
		WithRefreshInterval(time.Hour))
	c, stop := runFollower(t, f)
	defer stop()
	waitReady(t, f)

	// The refresh interval is an hour, so only a notification can trigger the switch.
	second := filepath.Join(dir, "Network_2.log")
	require.NoError(t, os.WriteFile(second, []byte("fresh\n"), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(second, later, later))

	require.Eventually(t, func() bool {
		lines := c.get()
		return len(lines) == 1 && lines[0] == "fresh"
	}, 3*time.Second, 10*time.Millisecond)
}
