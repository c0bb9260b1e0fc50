// Package transfer implements the FileTransfer port over SFTP.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// HostKeyCallback defaults to accepting any host key. Supply a pinned
	// callback in hardened deployments.
	HostKeyCallback ssh.HostKeyCallback
}

// SFTPTransfer dials a fresh session per upload.
type SFTPTransfer struct {
	config Config
	logger *slog.Logger
}

func NewSFTPTransfer(config Config, logger *slog.Logger) (*SFTPTransfer, error) {
	if config.Host == "" {
		return nil, errors.New("sftp host is required")
	}

	if config.Username == "" {
		return nil, errors.New("sftp username is required")
	}

	if config.Port == 0 {
		config.Port = 22
	}

	if config.HostKeyCallback == nil {
		config.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec
	}

	return &SFTPTransfer{
		config: config,
		logger: logger.With("module", "sftp_transfer", "host", config.Host),
	}, nil
}

func (t *SFTPTransfer) Upload(ctx context.Context, remotePath string, data []byte) error {
	if remotePath == "" {
		return errors.New("remote path is required")
	}

	conn, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", t.config.Host, t.config.Port), &ssh.ClientConfig{
		User:            t.config.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(t.config.Password)},
		HostKeyCallback: t.config.HostKeyCallback,
		Timeout:         30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.config.Host, err)
	}
	defer func() { _ = conn.Close() }()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("failed to open sftp session: %w", err)
	}
	defer func() { _ = client.Close() }()

	dir := path.Dir(remotePath)
	if dir != "." && dir != "/" {
		err = client.MkdirAll(dir)
		if err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", dir, err)
		}
	}

	file, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer func() { _ = file.Close() }()

	_, err = file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
	}

	t.logger.InfoContext(ctx, "Uploaded file", "remote_path", remotePath, "bytes", len(data))

	return nil
}
