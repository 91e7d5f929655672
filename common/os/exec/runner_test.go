package exec

import (
	"context"
	"io/ioutil"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var outputExitScript string = `
#!/bin/bash
cat
echo "stdout line"
echo "stderr line" 1>&2
exit 3`

func TestUnrunnableCommand(t *testing.T) {
	cmd := NewOsExec().Command("sjkldoeiujeiuc")
	rr := RunCommand(context.Background(), cmd, nil, 0)
	assert.Error(t, rr.Error)
	assert.Equal(t, -1, rr.ExitCode)
}

func TestRunCommandOutput(t *testing.T) {
	tf, err := setupTempScript(outputExitScript)
	if err != nil {
		t.Fatalf("failed setting up temp script file: %s", err)
	}
	defer os.Remove(tf.Name())

	cmd := NewOsExec().Command("/bin/bash", tf.Name())
	rr := RunCommand(context.Background(), cmd, strings.NewReader("from stdin\n"), time.Second)
	assert.Equal(t, 3, rr.ExitCode)
	_, isExit := rr.Error.(ExitError)
	assert.True(t, isExit)
	assert.Contains(t, string(rr.Stdout), "from stdin")
	assert.Contains(t, string(rr.Stdout), "stdout line")
	assert.Equal(t, "stderr line", rr.StderrLine())
}

func TestCommandTimeout(t *testing.T) {
	cmd := NewOsExec().Command("sleep", "5")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	rr := RunCommand(ctx, cmd, nil, time.Second)
	assert.True(t, time.Since(start) < 2*time.Second)
	assert.Equal(t, TimeoutError, rr.Error)
	assert.Equal(t, -1, rr.ExitCode)
}

func TestCommandNoTimeout(t *testing.T) {
	cmd := NewOsExec().Command("true")
	rr := RunCommand(context.Background(), cmd, nil, time.Second)
	assert.NoError(t, rr.Error)
	assert.Equal(t, 0, rr.ExitCode)
}

func TestValidatingExecer(t *testing.T) {
	expectedCmds := [][]string{{"sbatch", "--parsable"}, {"squeue", "-j", `^\d+$`}, {"scancel", "42"}}
	ve := NewValidatingExecer(t, expectedCmds).SetFakeOutputs(map[int]FakeOutput{
		0: {Stdout: "42\n"},
		1: {Stdout: "RUNNING\n", Stderr: "warn"},
		2: {Stderr: "scancel: error: Invalid job id", ExitCode: 1},
	})
	defer ve.CheckAllValidated()

	cmd := ve.Command("sbatch", "--parsable")
	rr := RunCommand(context.Background(), cmd, strings.NewReader("#!/bin/bash\n"), 0)
	assert.NoError(t, rr.Error)
	assert.Equal(t, "42\n", string(rr.Stdout))
	assert.Equal(t, "#!/bin/bash\n", string(cmd.(*ValidatingCmd).Stdin()))

	rr = RunCommand(context.Background(), ve.Command("squeue", "-j", "42"), nil, 0)
	assert.Equal(t, "RUNNING\n", string(rr.Stdout))
	assert.Equal(t, "warn", string(rr.Stderr))

	rr = RunCommand(context.Background(), ve.Command("scancel", "42"), nil, 0)
	assert.Equal(t, 1, rr.ExitCode)
	assert.Equal(t, "scancel: error: Invalid job id", rr.StderrLine())

	assert.Len(t, ve.Received(), 3)
}

func TestValidatingExecerDelay(t *testing.T) {
	ve := NewValidatingExecer(t, [][]string{{"squeue"}}).SetFakeOutputs(map[int]FakeOutput{
		0: {Delay: 200 * time.Millisecond},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	rr := RunCommand(ctx, ve.Command("squeue"), nil, 0)
	assert.Equal(t, TimeoutError, rr.Error)
}

func setupTempScript(contents string) (*os.File, error) {
	tf, err := ioutil.TempFile("", "script")
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(tf.Name(), 0777); err != nil {
		os.Remove(tf.Name())
		return nil, err
	}
	if _, err := tf.Write([]byte(contents)); err != nil {
		os.Remove(tf.Name())
		return nil, err
	}
	return tf, nil
}

func TestTruncateCmd(t *testing.T) {
	cmd := NewOsExec().Command("hello")
	assert.Equal(t, "hello", truncateCmd(cmd))

	cmd = NewOsExec().Command("/foo/bar/xyz/hello", "world")
	assert.Equal(t, "hello world", truncateCmd(cmd))
}
