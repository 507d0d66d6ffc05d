package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/felixgeelhaar/champ/internal/domain"
)

const workDir = "/workspace"

// DockerConfig configures the Docker backend
type DockerConfig struct {
	Config
	// Images overrides the default image per language
	Images map[domain.Language]string
}

// DockerRunner is a Sandbox that runs every call in a fresh container
type DockerRunner struct {
	*Runner
	backend *dockerBackend
}

// NewDocker connects to the local Docker daemon and returns a sandbox
func NewDocker(cfg DockerConfig, logger *slog.Logger) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	b := &dockerBackend{client: cli, cfg: cfg.Config.withDefaults()}
	r := newRunner(b, cfg.Config, logger)
	for lang, img := range cfg.Images {
		if lc, ok := r.languages[lang]; ok && img != "" {
			lc.DockerImage = img
			r.languages[lang] = lc
		}
	}
	return &DockerRunner{Runner: r, backend: b}, nil
}

// Close closes the Docker client
func (d *DockerRunner) Close() error {
	return d.backend.client.Close()
}

type dockerBackend struct {
	client *client.Client
	cfg    Config
}

func (b *dockerBackend) Name() string { return "docker" }

func (b *dockerBackend) Prepare(ctx context.Context, lang LanguageConfig, files map[string]string) (workspace, error) {
	if err := b.ensureImage(ctx, lang.DockerImage); err != nil {
		return nil, fmt.Errorf("ensure image: %w", err)
	}

	containerCfg := &container.Config{
		Image:           lang.DockerImage,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      workDir,
		NetworkDisabled: b.cfg.NetworkOff,
		Env:             []string{"NO_COLOR=1", "PYTHONDONTWRITEBYTECODE=1"},
		Labels: map[string]string{
			"champ.sandbox": "true",
			"champ.lang":    string(lang.Language),
		},
	}
	pids := int64(128)
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:    int64(b.cfg.MemoryMB) * 1024 * 1024,
			NanoCPUs:  int64(b.cfg.CPULimit * 1e9),
			PidsLimit: &pids,
		},
	}

	resp, err := b.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	ws := &dockerWorkspace{client: b.client, id: resp.ID}

	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("start container: %w", err)
	}
	if err := ws.copyFiles(ctx, files); err != nil {
		ws.Close()
		return nil, fmt.Errorf("copy files: %w", err)
	}
	return ws, nil
}

func (b *dockerBackend) ensureImage(ctx context.Context, img string) error {
	if _, err := b.client.ImageInspect(ctx, img); err == nil {
		return nil
	}

	reader, err := b.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

type dockerWorkspace struct {
	client *client.Client
	id     string
}

func (w *dockerWorkspace) copyFiles(ctx context.Context, files map[string]string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return fmt.Errorf("write tar content: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}

	return w.client.CopyToContainer(ctx, w.id, workDir, &buf, container.CopyToContainerOptions{})
}

func (w *dockerWorkspace) Exec(ctx context.Context, cmd []string) (*ExecResult, error) {
	execResp, err := w.client.ContainerExecCreate(ctx, w.id, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	start := time.Now()
	attach, err := w.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
	res := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	if copyErr != nil {
		return nil, fmt.Errorf("read exec output: %w", copyErr)
	}

	inspect, err := w.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}
	res.ExitCode = inspect.ExitCode
	return res, nil
}

// Close removes the container; a timed-out process dies with it
func (w *dockerWorkspace) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return w.client.ContainerRemove(ctx, w.id, container.RemoveOptions{Force: true})
}
