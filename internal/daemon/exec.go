package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ExecSpawner re-executes a binary, by default the running one, as a detached
// daemon in its own session with stdin closed.
type ExecSpawner struct {
	// Path of the binary. Empty means os.Executable.
	Path string
	// Args excludes argv[0].
	Args []string
	// Env is the daemon environment before EnvDaemon is added. Nil means the
	// current environment.
	Env []string
	// Stdout and Stderr should be *os.File; anything else needs a copying
	// goroutine that dies with the launcher.
	Stdout *os.File
	Stderr *os.File
}

func (s *ExecSpawner) Spawn(ctx context.Context, hs *os.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}

	env := s.Env
	if env == nil {
		env = os.Environ()
	}

	// not CommandContext, the daemon outlives the launcher
	cmd := exec.Command(path, s.Args...)
	cmd.Env = append(env[:len(env):len(env)], EnvDaemon+"=1")
	cmd.ExtraFiles = []*os.File{hs} // becomes fd 3 in the daemon
	cmd.Stdin = nil
	if s.Stdout != nil {
		cmd.Stdout = s.Stdout
	}
	if s.Stderr != nil {
		cmd.Stderr = s.Stderr
	}
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}

	return cmd.Process.Release()
}
