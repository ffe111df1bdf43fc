package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

const workDir = "/judge"

// DockerEngine implements Engine over the Docker daemon. One engine is
// shared by all workers; each box is an independent container.
type DockerEngine struct {
	cli    *client.Client
	logger *slog.Logger
	pulls  *xsync.MapOf[string, *imagePull]
}

type imagePull struct {
	once sync.Once
	err  error
}

func NewDockerEngine(logger *slog.Logger) (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerEngine{
		cli:    cli,
		logger: logger,
		pulls:  xsync.NewMapOf[string, *imagePull](),
	}, nil
}

// EnsureImage pulls the image unless the daemon already has it. Concurrent
// workers requesting the same image share a single pull.
func (e *DockerEngine) EnsureImage(ctx context.Context, img string) error {
	p, _ := e.pulls.LoadOrStore(img, &imagePull{})
	p.once.Do(func() {
		p.err = e.pullIfMissing(ctx, img)
	})
	if p.err != nil {
		// let the next box attempt the pull again
		e.pulls.Delete(img)
	}
	return p.err
}

func (e *DockerEngine) pullIfMissing(ctx context.Context, img string) error {
	if _, _, err := e.cli.ImageInspectWithRaw(ctx, img); err == nil {
		return nil
	}
	e.logger.Info("pulling image", slog.String("image", img))
	reader, err := e.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	defer reader.Close()
	// the pull only completes once the progress stream is consumed
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	return nil
}

// NewBox starts a fresh container for one test-case execution. The memory
// cap is enforced by the runtime; swap is pinned to the same value so the
// limit is a true ceiling.
func (e *DockerEngine) NewBox(ctx context.Context, img string, memoryLimitBytes int64) (Box, error) {
	if err := e.EnsureImage(ctx, img); err != nil {
		return nil, err
	}

	pidsLimit := int64(64)
	resp, err := e.cli.ContainerCreate(ctx,
		&container.Config{
			Image:           img,
			Cmd:             []string{"sleep", "infinity"},
			OpenStdin:       true,
			NetworkDisabled: true,
			WorkingDir:      workDir,
		},
		&container.HostConfig{
			Resources: container.Resources{
				Memory:     memoryLimitBytes,
				MemorySwap: memoryLimitBytes,
				PidsLimit:  &pidsLimit,
			},
			NetworkMode: "none",
			SecurityOpt: []string{"no-new-privileges"},
			CapDrop:     []string{"ALL"},
			Tmpfs: map[string]string{
				workDir: "rw,exec,nosuid,size=256m,mode=1777",
				"/tmp":  "rw,noexec,nosuid,size=64m,mode=1777",
			},
		},
		nil, nil, "judge-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	if err := e.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = e.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	return &dockerBox{cli: e.cli, id: resp.ID, logger: e.logger}, nil
}

type dockerBox struct {
	cli    *client.Client
	id     string
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// AddFile streams content into the box through an exec step; CopyToContainer
// does not work with tmpfs-backed working directories.
func (b *dockerBox) AddFile(ctx context.Context, name string, content []byte) error {
	execResp, err := b.cli.ContainerExecCreate(ctx, b.id, container.ExecOptions{
		Cmd:         []string{"sh", "-c", "cat > " + shellQuote(path.Join(workDir, name))},
		AttachStdin: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create write exec: %w", err)
	}

	attach, err := b.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return fmt.Errorf("failed to attach write exec: %w", err)
	}
	defer attach.Close()

	if _, err := attach.Conn.Write(content); err != nil {
		return fmt.Errorf("failed to write file %s: %w", name, err)
	}
	if err := attach.CloseWrite(); err != nil {
		return fmt.Errorf("failed to close write exec stdin: %w", err)
	}

	return b.awaitExec(ctx, execResp.ID)
}

// shellQuote single-quotes s for sh -c, so configured source filenames
// with spaces or metacharacters stage verbatim.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (b *dockerBox) awaitExec(ctx context.Context, execID string) error {
	for {
		inspect, err := b.cli.ContainerExecInspect(ctx, execID)
		if err != nil {
			return fmt.Errorf("failed to inspect exec: %w", err)
		}
		if !inspect.Running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (b *dockerBox) Exec(ctx context.Context, cmd []string, stdin []byte, output io.Writer) (int, error) {
	execResp, err := b.cli.ContainerExecCreate(ctx, b.id, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create exec: %w", err)
	}

	attach, err := b.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to attach exec: %w", err)
	}
	defer attach.Close()

	if len(stdin) > 0 {
		if _, err := attach.Conn.Write(stdin); err != nil {
			return 0, fmt.Errorf("failed to write stdin: %w", err)
		}
	}
	// closing stdin signals end-of-input to the program
	if err := attach.CloseWrite(); err != nil {
		return 0, fmt.Errorf("failed to close exec stdin: %w", err)
	}

	if _, err := stdcopy.StdCopy(output, output, attach.Reader); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("failed to drain exec output: %w", err)
	}

	inspect, err := b.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect exec: %w", err)
	}
	return inspect.ExitCode, nil
}

func (b *dockerBox) MemoryUsage(ctx context.Context) (int64, error) {
	stats, err := b.cli.ContainerStatsOneShot(ctx, b.id)
	if err != nil {
		return 0, fmt.Errorf("failed to read container stats: %w", err)
	}
	defer stats.Body.Close()

	var v container.StatsResponse
	if err := json.NewDecoder(stats.Body).Decode(&v); err != nil {
		return 0, fmt.Errorf("failed to decode container stats: %w", err)
	}
	return int64(v.MemoryStats.Usage), nil
}

func (b *dockerBox) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		err := b.cli.ContainerRemove(ctx, b.id, container.RemoveOptions{Force: true, RemoveVolumes: true})
		if err != nil {
			b.closeErr = fmt.Errorf("failed to remove container: %w", err)
		}
	})
	return b.closeErr
}
