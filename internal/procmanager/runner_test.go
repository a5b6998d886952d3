package procmanager

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warden-sh/warden/internal/domain"
)

func TestExecRunner_StartAndExit(t *testing.T) {
	runner := NewExecRunner()

	proc, err := runner.Start(context.Background(), domain.SpawnSpec{
		InstanceID: "i1",
		Command:    "true",
	})
	require.NoError(t, err)
	assert.Greater(t, proc.PID(), 0)

	assert.NoError(t, proc.Wait())
}

func TestExecRunner_ExitCode(t *testing.T) {
	runner := NewExecRunner()

	proc, err := runner.Start(context.Background(), domain.SpawnSpec{
		InstanceID: "i1",
		Command:    "exit 42",
	})
	require.NoError(t, err)

	err = proc.Wait()
	require.Error(t, err)

	coder, ok := err.(interface{ ExitCode() int })
	require.True(t, ok)
	assert.Equal(t, 42, coder.ExitCode())
}

func TestExecRunner_EnvAndWorkingDir(t *testing.T) {
	runner := NewExecRunner()
	dir := t.TempDir()

	proc, err := runner.Start(context.Background(), domain.SpawnSpec{
		InstanceID: "i1",
		Command:    `echo "$WARDEN_TEST_VALUE" > marker.txt`,
		WorkingDir: dir,
		Env:        map[string]string{"WARDEN_TEST_VALUE": "hello"},
	})
	require.NoError(t, err)
	require.NoError(t, proc.Wait())

	data, err := os.ReadFile(dir + "/marker.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestExecRunner_SignalTerminates(t *testing.T) {
	runner := NewExecRunner()

	proc, err := runner.Start(context.Background(), domain.SpawnSpec{
		InstanceID: "i1",
		Command:    "sleep 30",
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()

	require.NoError(t, proc.Signal(sigterm))

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after SIGTERM")
	}
}

func TestExecRunner_BadCommandStillStarts(t *testing.T) {
	// sh -c defers the failure to the shell, so Start succeeds and the
	// exit status carries the error
	runner := NewExecRunner()

	proc, err := runner.Start(context.Background(), domain.SpawnSpec{
		InstanceID: "i1",
		Command:    "definitely-not-a-real-binary-xyz",
	})
	require.NoError(t, err)
	assert.Error(t, proc.Wait())
}
