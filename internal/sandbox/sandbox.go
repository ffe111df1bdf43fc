// Package sandbox executes untrusted code inside per-test-case containers
// under hard time and memory limits. The Engine/Box interfaces isolate the
// runner's staging and timeout logic from the Docker client.
package sandbox

import (
	"context"
	"io"
)

// Box is one isolated container prepared for discrete exec steps. The
// container runs an idle placeholder command so compile and execute steps
// can be issued separately against the same filesystem.
type Box interface {
	// AddFile materializes a file inside the box's working directory.
	AddFile(ctx context.Context, name string, content []byte) error
	// Exec runs a command inside the box, writing stdin to the process and
	// then closing it, while draining combined stdout+stderr into output.
	// It returns the process exit code.
	Exec(ctx context.Context, cmd []string, stdin []byte, output io.Writer) (int, error)
	// MemoryUsage reports the container's current memory usage in bytes.
	MemoryUsage(ctx context.Context) (int64, error)
	// Close forcibly tears the container down. Safe to call more than once.
	Close(ctx context.Context) error
}

// Engine creates boxes. The container runtime and its image cache are the
// only resources shared between concurrent workers.
type Engine interface {
	NewBox(ctx context.Context, image string, memoryLimitBytes int64) (Box, error)
}
