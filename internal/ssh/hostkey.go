package ssh

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyPrompt asks the user whether to trust an unknown host key.
type HostKeyPrompt func(hostname string, key ssh.PublicKey) (bool, error)

// ErrHostKeyRejected is returned when the user declines an unknown key.
var ErrHostKeyRejected = errors.New("host key rejected")

// HostKeyCallback verifies servers against knownHostsFile. Unknown hosts
// are put to prompt and, once accepted, appended to the file. A changed
// key is always an error. insecure skips every check.
func HostKeyCallback(knownHostsFile string, insecure bool, prompt HostKeyPrompt) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if err := ensureFile(knownHostsFile); err != nil {
		return nil, err
	}
	check, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("known hosts %s: %w", knownHostsFile, err)
	}

	accepted := make(map[string]string)
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}

		fp := ssh.FingerprintSHA256(key)
		if accepted[hostname] == fp {
			return nil
		}
		if prompt == nil {
			return fmt.Errorf("unknown host %s (%s)", hostname, fp)
		}
		ok, err := prompt(hostname, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrHostKeyRejected
		}
		accepted[hostname] = fp
		if err := appendKnownHost(knownHostsFile, hostname, key); err != nil {
			log.Printf("[remote] could not record host key for %s: %v", hostname, err)
		}
		return nil
	}, nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) (retErr error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); cErr != nil {
			retErr = errors.Join(retErr, cErr)
		}
	}()
	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = fmt.Fprintln(f, line)
	return err
}
