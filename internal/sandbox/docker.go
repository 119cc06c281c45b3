package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	units "github.com/docker/go-units"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

// sandboxUser is the unprivileged identity every sandboxed container runs
// as: nobody:nogroup on the Alpine-based toolchain images in dockerImages,
// never the image's default root.
const sandboxUser = "65534:65534"

// sandboxPidsLimit bounds the number of processes/threads a sandboxed
// build can fork, per the "process ... limits enforced" isolation
// requirement.
const sandboxPidsLimit = int64(256)

// sandboxNoFileLimit bounds open file descriptors inside the container.
const sandboxNoFileLimit = int64(1024)

// sandboxPlatform pins every container the sandbox creates to linux/amd64
// regardless of the host's own architecture, so a fix validated on the
// engine's CI runners behaves identically on a contributor's arm64
// laptop.
var sandboxPlatform = &ocispec.Platform{OS: "linux", Architecture: "amd64"}

// dockerImages maps a language id to the minimal toolchain image used for
// the build+run stage. Grounded on a reference Docker client wiring (pkg/discovery/docker), adapted
// here from container introspection to container-as-sandbox lifecycle.
var dockerImages = map[string]string{
	"go":     "golang:1.24-alpine",
	"python": "python:3.12-alpine",
}

// dockerRunner drives the Docker Engine API for the container build+run
// stage. NanoCPUs/Memory/PidsLimit/Ulimits and the wall budget bound
// resource use; NetworkMode is always "none" so a sandboxed build can
// never reach the network, per the module's no-egress invariant — a
// container's loopback interface is up under "none" too, so projects
// that opt into loopback test harnesses never need real network access.
// The container filesystem is read-only outside the bind-mounted
// working copy, runs as an unprivileged uid:gid, and denies new
// privileges, per the isolation contract in §4.9.
type dockerRunner struct {
	cli *client.Client
}

func newDockerRunner() (*dockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: failed to create client: %w", err)
	}
	return &dockerRunner{cli: cli}, nil
}

func (d *dockerRunner) Close() error {
	if d.cli == nil {
		return nil
	}
	return d.cli.Close()
}

// containerRunParams bundles the per-run knobs the caller has already
// resolved (policy command, language default, loopback allowance).
type containerRunParams struct {
	languageID    string
	buildCommand  []string
	testCommand   []string
	allowLoopback bool
	wallBudget    time.Duration
	nanoCPUs      int64
	memoryBytes   int64
	workdir       string // host path bind-mounted read-write at /workspace
}

// run builds and (if a test command is present) tests the bind-mounted
// working copy inside a throwaway container, classifying the result into
// one of the sandbox outcomes. The container is always removed
// before returning, regardless of outcome.
func (d *dockerRunner) run(ctx context.Context, p containerRunParams) (types.SandboxRun, error) {
	image, ok := dockerImages[p.languageID]
	if !ok {
		return types.SandboxRun{Outcome: types.SandboxBuildFailed,
			Violations: []string{fmt.Sprintf("no sandbox image for language %q", p.languageID)}}, nil
	}

	// NetworkMode is always "none": a single-container network namespace
	// already has a working loopback interface, so projects that opt into
	// loopback test harnesses (p.allowLoopback) are served without ever
	// granting outbound egress — "bridge" would NAT to the host network
	// and violate the no-egress invariant for no isolation benefit.
	networkMode := container.NetworkMode("none")

	script := buildShellScript(p.buildCommand, p.testCommand)

	pidsLimit := sandboxPidsLimit
	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      image,
			Cmd:        []string{"/bin/sh", "-c", script},
			WorkingDir: "/workspace",
			User:       sandboxUser,
			Tty:        false,
		},
		&container.HostConfig{
			Binds:       []string{p.workdir + ":/workspace"},
			NetworkMode: networkMode,
			Resources: container.Resources{
				NanoCPUs: p.nanoCPUs,
				Memory:   p.memoryBytes,
				PidsLimit: &pidsLimit,
				Ulimits: []*units.Ulimit{
					{Name: "nofile", Soft: sandboxNoFileLimit, Hard: sandboxNoFileLimit},
				},
			},
			SecurityOpt:    []string{"no-new-privileges"},
			ReadonlyRootfs: true,
			Tmpfs:          map[string]string{"/tmp": "rw,noexec,nosuid,size=64m"},
			AutoRemove:     false,
		},
		&network.NetworkingConfig{},
		sandboxPlatform,
		"",
	)
	if err != nil {
		return types.SandboxRun{}, fmt.Errorf("docker: container create failed: %w", err)
	}
	containerID := resp.ID

	defer func() {
		timeout := 2
		_ = d.cli.ContainerStop(context.Background(), containerID, container.StopOptions{Timeout: &timeout})
		_ = d.cli.ContainerRemove(context.Background(), containerID, dockertypes.ContainerRemoveOptions{Force: true, RemoveVolumes: true})
	}()

	runCtx, cancel := context.WithTimeout(ctx, p.wallBudget)
	defer cancel()

	start := time.Now()
	if err := d.cli.ContainerStart(runCtx, containerID, dockertypes.ContainerStartOptions{}); err != nil {
		return types.SandboxRun{}, fmt.Errorf("docker: container start failed: %w", err)
	}

	statusCh, errCh := d.cli.ContainerWait(runCtx, containerID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if runCtx.Err() != nil {
			logging.SandboxDebug("sandbox container %s exceeded wall budget %v", containerID[:12], p.wallBudget)
			return types.SandboxRun{Outcome: types.SandboxTimeout, WallMS: int64(p.wallBudget / time.Millisecond)}, nil
		}
		if err != nil {
			return types.SandboxRun{}, fmt.Errorf("docker: container wait failed: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	wall := time.Since(start)

	return types.SandboxRun{
		Outcome: classifyExit(exitCode, len(p.testCommand) > 0),
		WallMS:  int64(wall / time.Millisecond),
	}, nil
}

// classifyExit maps a container exit code to a sandbox outcome. Exit 0 is
// ok; a non-zero exit during a run with no test command is build_failed,
// otherwise test_failed, matching the category split.
func classifyExit(code int64, hadTestCommand bool) types.SandboxOutcome {
	if code == 0 {
		return types.SandboxOK
	}
	if hadTestCommand {
		return types.SandboxTestFailed
	}
	return types.SandboxBuildFailed
}

// buildShellScript joins build then test commands with && so a failing
// build short-circuits before the test command ever runs.
func buildShellScript(buildCmd, testCmd []string) string {
	parts := []string{strings.Join(buildCmd, " ")}
	if len(testCmd) > 0 {
		parts = append(parts, strings.Join(testCmd, " "))
	}
	return strings.Join(parts, " && ")
}
