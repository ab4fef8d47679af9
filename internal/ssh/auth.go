package ssh

import (
	"errors"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// ErrNoAgent means SSH_AUTH_SOCK is not set.
var ErrNoAgent = errors.New("no ssh agent")

// PubKeyAuth loads an unencrypted private key file.
func PubKeyAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// AgentAuth offers the keys held by the running ssh-agent. The agent
// connection stays open for the life of the process.
func AgentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, ErrNoAgent
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// PasswordCallbackAuth asks prompt for a password only when the server
// wants one.
func PasswordCallbackAuth(prompt func() (string, error)) ssh.AuthMethod {
	return ssh.PasswordCallback(prompt)
}

func KeyboardInteractiveAuth(challenge ssh.KeyboardInteractiveChallenge) ssh.AuthMethod {
	return ssh.KeyboardInteractive(challenge)
}

// DefaultKeyPaths lists the conventional private keys under ~/.ssh that
// exist.
func DefaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var paths []string
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// AuthMethods orders key, agent, default keys and finally the password
// prompt, the way the OpenSSH client tries them.
func AuthMethods(keyPath string, prompt func() (string, error)) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if keyPath != "" {
		if am, err := PubKeyAuth(keyPath); err == nil {
			methods = append(methods, am)
		}
	}
	if am, err := AgentAuth(); err == nil {
		methods = append(methods, am)
	}
	for _, kp := range DefaultKeyPaths() {
		if kp == keyPath {
			continue
		}
		if am, err := PubKeyAuth(kp); err == nil {
			methods = append(methods, am)
		}
	}
	if prompt != nil {
		methods = append(methods, PasswordCallbackAuth(prompt))
		methods = append(methods, KeyboardInteractiveAuth(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range questions {
				a, err := prompt()
				if err != nil {
					return nil, err
				}
				answers[i] = a
			}
			return answers, nil
		}))
	}
	return methods
}
