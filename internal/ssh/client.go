package ssh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bramvdbogaerde/go-scp"
	"golang.org/x/crypto/ssh"
)

// Client wraps an SSH connection used to move whole files with scp.
type Client struct {
	client  *ssh.Client
	address string
}

// New dials host:port and authenticates as username.
func New(host, port, username string, authMethods []ssh.AuthMethod, hkCallback ssh.HostKeyCallback) (*Client, error) {
	cfg := &ssh.ClientConfig{
		User:            username,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         10 * time.Second,
	}
	address := net.JoinHostPort(host, port)
	client, err := ssh.Dial("tcp", address, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return &Client{client: client, address: address}, nil
}

func (c *Client) Address() string { return c.address }

func (c *Client) Close() error {
	return c.client.Close()
}

// Download copies remotePath into a new file at localPath.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) (retErr error) {
	scpClient, err := scp.NewClientBySSH(c.client)
	if err != nil {
		return err
	}
	defer scpClient.Close()

	f, err := os.OpenFile(localPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); cErr != nil {
			retErr = errors.Join(retErr, fmt.Errorf("close local file: %w", cErr))
		}
	}()

	return scpClient.CopyFromRemote(ctx, f, remotePath)
}

// Upload replaces remotePath with the contents of localPath, keeping the
// remote file's permission bits when they can be read.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) (retErr error) {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); cErr != nil {
			retErr = errors.Join(retErr, fmt.Errorf("close local file: %w", cErr))
		}
	}()

	mode, err := c.RemoteMode(remotePath)
	if err != nil {
		info, sErr := f.Stat()
		if sErr != nil {
			return sErr
		}
		log.Printf("[remote] keeping local mode for %s: %v", remotePath, err)
		mode = info.Mode().Perm()
	}

	scpClient, err := scp.NewClientBySSH(c.client)
	if err != nil {
		return err
	}
	defer scpClient.Close()

	return scpClient.CopyFile(ctx, f, remotePath, fmt.Sprintf("0%o", mode))
}

// RemoteMode asks the remote host for the permission bits of path.
func (c *Client) RemoteMode(path string) (os.FileMode, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return 0, err
	}
	defer func() { _ = session.Close() }()

	out, err := session.Output("stat -c %a " + shellQuote(path))
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return parseMode(string(out))
}

func parseMode(s string) (os.FileMode, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || s == "" {
		return 0, fmt.Errorf("unexpected mode %q", s)
	}
	return os.FileMode(v).Perm(), nil
}

// shellQuote single-quotes s for a remote shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
