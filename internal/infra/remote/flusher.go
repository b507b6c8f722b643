// Package remote implements the flush_disk_cache precondition: dropping the
// OS page cache on the machine that serves the benchmark queries, locally or
// over SSH/WinRM when the backend runs elsewhere.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/masterzen/winrm"
	"golang.org/x/crypto/ssh"
)

// ErrNoAuthMethod is returned when an SSH flusher has neither a password
// nor a private key configured.
var ErrNoAuthMethod = errors.New("ssh flusher needs a password or a private key")

// dropCachesCommand is the Linux page-cache drop sequence run on the
// database host.
const dropCachesCommand = "sync && echo 3 > /proc/sys/vm/drop_caches"

// CacheFlusher drops the OS disk cache before a measurement.
type CacheFlusher interface {
	FlushDiskCache(ctx context.Context) error
}

// LocalFlusher drops the page cache of the current host. It needs root for
// the procfs write; the sync alone still helps otherwise.
type LocalFlusher struct {
	Logger *slog.Logger
}

// FlushDiskCache implements CacheFlusher.
func (f LocalFlusher) FlushDiskCache(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "sync").Run(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := os.WriteFile("/proc/sys/vm/drop_caches", []byte("3\n"), 0); err != nil {
		return fmt.Errorf("drop page cache: %w", err)
	}
	if f.Logger != nil {
		f.Logger.Info("dropped local page cache")
	}
	return nil
}

// SSHConfig locates the Linux database host for remote cache flushing.
type SSHConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	KeyPath  string `yaml:"key_path"`
}

// SSHFlusher drops the page cache of a remote Linux host over SSH.
type SSHFlusher struct {
	Config SSHConfig
	Logger *slog.Logger
}

// FlushDiskCache implements CacheFlusher. A fresh connection per flush keeps
// the flusher stateless; flushes are rare enough that this does not matter.
func (f SSHFlusher) FlushDiskCache(ctx context.Context) error {
	clientConfig, err := f.clientConfig()
	if err != nil {
		return err
	}

	port := f.Config.Port
	if port == 0 {
		port = 22
	}
	addr := fmt.Sprintf("%s:%d", f.Config.Host, port)

	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	done := make(chan error, 1)
	go func() { done <- session.Run(dropCachesCommand) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("drop remote page cache: %w", err)
		}
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return ctx.Err()
	}

	if f.Logger != nil {
		f.Logger.Info("dropped remote page cache", "host", f.Config.Host)
	}
	return nil
}

func (f SSHFlusher) clientConfig() (*ssh.ClientConfig, error) {
	config := &ssh.ClientConfig{
		User:            f.Config.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	if f.Config.Password != "" {
		config.Auth = append(config.Auth, ssh.Password(f.Config.Password))
	}
	if f.Config.KeyPath != "" {
		key, err := os.ReadFile(f.Config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}
	if len(config.Auth) == 0 {
		return nil, ErrNoAuthMethod
	}
	return config, nil
}

// WinRMConfig locates a Windows database host for remote cache flushing.
type WinRMConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseHTTPS bool   `yaml:"use_https"`
}

// WinRMFlusher flushes the file system cache of a remote Windows host.
type WinRMFlusher struct {
	Config WinRMConfig
	Logger *slog.Logger
}

// flushVolumeCommand writes dirty pages of the system volume to disk.
const flushVolumeCommand = `powershell -NoProfile -Command "Write-VolumeCache -DriveLetter C"`

// FlushDiskCache implements CacheFlusher.
func (f WinRMFlusher) FlushDiskCache(ctx context.Context) error {
	port := f.Config.Port
	if port == 0 {
		if f.Config.UseHTTPS {
			port = 5986
		} else {
			port = 5985
		}
	}

	endpoint := winrm.NewEndpoint(f.Config.Host, port, f.Config.UseHTTPS,
		false, nil, nil, nil, 60*time.Second)
	client, err := winrm.NewClient(endpoint, f.Config.Username, f.Config.Password)
	if err != nil {
		return fmt.Errorf("create winrm client: %w", err)
	}

	code, err := client.RunWithContext(ctx, flushVolumeCommand, io.Discard, io.Discard)
	if err != nil {
		return fmt.Errorf("flush remote volume cache: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("flush remote volume cache: exit status %d", code)
	}

	if f.Logger != nil {
		f.Logger.Info("flushed remote volume cache", "host", f.Config.Host)
	}
	return nil
}
