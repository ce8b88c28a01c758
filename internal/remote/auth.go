package remote

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"
)

var defaultKeyFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// credentials assembles SSH auth methods: agent, unencrypted default keys,
// then an interactive password unless in batch mode.
type credentials struct {
	user   string
	host   string
	batch  bool
	keyDir string
	log    *zap.Logger

	// readPassword reads a secret from the terminal.
	readPassword func(prompt string) (string, error)

	mu       sync.Mutex
	password string
	asked    bool
}

func (c *credentials) methods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if sock := strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK")); sock != "" {
		methods = append(methods, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				return nil, err
			}
			defer conn.Close()
			return agent.NewClient(conn).Signers()
		}))
	}

	if signers := c.keySigners(); len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if !c.batch {
		methods = append(methods,
			ssh.PasswordCallback(c.secret),
			ssh.KeyboardInteractive(c.answer),
		)
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH auth methods available (configure ssh-agent or private keys, or disable batch mode)")
	}
	return methods, nil
}

func (c *credentials) keySigners() []ssh.Signer {
	dir := c.keyDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		dir = filepath.Join(home, ".ssh")
	}

	var signers []ssh.Signer
	for _, name := range defaultKeyFiles {
		pem, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			// Passphrase-protected keys are left to the agent.
			c.log.Debug("skipping private key", zap.String("key", name), zap.Error(err))
			continue
		}
		signers = append(signers, signer)
	}
	return signers
}

// secret prompts once and reuses the answer for later auth rounds.
func (c *credentials) secret() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.asked {
		return c.password, nil
	}

	read := c.readPassword
	if read == nil {
		read = readTerminalPassword
	}
	pass, err := read(fmt.Sprintf("%s@%s's password: ", c.user, c.host))
	if err != nil {
		return "", err
	}
	c.password, c.asked = pass, true
	return pass, nil
}

func (c *credentials) answer(_, _ string, questions []string, echos []bool) ([]string, error) {
	answers := make([]string, len(questions))
	for i := range questions {
		if i < len(echos) && echos[i] {
			continue
		}
		pass, err := c.secret()
		if err != nil {
			return nil, err
		}
		answers[i] = pass
	}
	return answers, nil
}

func readTerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for SSH password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("password prompt failed: %w", err)
	}
	return string(pass), nil
}
