package remote

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// hostKeyStore verifies server keys against a known_hosts file, trusting
// unknown hosts on first use after confirmation.
type hostKeyStore struct {
	path   string
	batch  bool
	prompt func(question string) (bool, error)
	log    *zap.Logger
}

func openHostKeyStore(path string, batch bool, log *zap.Logger) (*hostKeyStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory for known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return nil, fmt.Errorf("cannot create known_hosts: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("cannot access known_hosts: %w", err)
	}
	return &hostKeyStore{path: path, batch: batch, prompt: promptYesNo, log: log}, nil
}

func (s *hostKeyStore) callback(host string, port int) (ssh.HostKeyCallback, error) {
	verify, err := knownhosts.New(s.path)
	if err != nil {
		return nil, fmt.Errorf("cannot load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return fmt.Errorf("host key verification failed: %w", err)
		}

		pattern := hostPattern(host, port)
		presented := ssh.FingerprintSHA256(key)

		if len(keyErr.Want) == 0 {
			if s.batch {
				return fmt.Errorf("unknown host key for %s (%s); run ssh once to trust it or disable batch mode", pattern, presented)
			}
			ok, err := s.prompt(fmt.Sprintf(
				"The authenticity of host '%s' can't be established.\n%s key fingerprint is %s.\nTrust this host and continue connecting (yes/no)? ",
				pattern, key.Type(), presented,
			))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("host key for %s was not trusted", pattern)
			}
			s.log.Info("trusting new host key", zap.String("host", pattern), zap.String("fingerprint", presented))
			return s.add(host, port, key)
		}

		expected := make([]string, 0, len(keyErr.Want))
		for _, want := range keyErr.Want {
			expected = append(expected, ssh.FingerprintSHA256(want.Key))
		}
		mismatch := fmt.Sprintf("host key mismatch for %s: expected %s, presented %s", pattern, strings.Join(expected, ", "), presented)
		if s.batch {
			return errors.New(mismatch)
		}
		ok, err := s.prompt("WARNING: " + mismatch + "\nReplace stored key and continue (yes/no)? ")
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(mismatch)
		}
		s.log.Warn("replacing host key", zap.String("host", pattern), zap.String("fingerprint", presented))
		return s.replace(host, port, key)
	}, nil
}

func (s *hostKeyStore) add(host string, port int, key ssh.PublicKey) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("cannot update known_hosts: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(knownhosts.Line([]string{hostPattern(host, port)}, key) + "\n"); err != nil {
		return fmt.Errorf("cannot write known_hosts entry: %w", err)
	}
	return nil
}

func (s *hostKeyStore) replace(host string, port int, key ssh.PublicKey) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("cannot read known_hosts: %w", err)
	}

	updated := stripHost(data, host, port)
	if len(updated) > 0 && updated[len(updated)-1] != '\n' {
		updated = append(updated, '\n')
	}
	updated = append(updated, knownhosts.Line([]string{hostPattern(host, port)}, key)...)
	updated = append(updated, '\n')

	if err := os.WriteFile(s.path, updated, 0o600); err != nil {
		return fmt.Errorf("cannot write known_hosts: %w", err)
	}
	return nil
}

// hostPattern is the known_hosts spelling of host:port.
func hostPattern(host string, port int) string {
	if port == 22 {
		return host
	}
	return fmt.Sprintf("[%s]:%d", host, port)
}

// stripHost removes every known_hosts line naming host:port, keeping
// comments, blank lines and other hosts untouched.
func stripHost(data []byte, host string, port int) []byte {
	aliases := map[string]bool{
		hostPattern(host, port):            true,
		fmt.Sprintf("[%s]:%d", host, port): true,
	}

	lines := strings.Split(string(data), "\n")
	keep := lines[:0]
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			keep = append(keep, line)
			continue
		}
		hosts := fields[0]
		if strings.HasPrefix(hosts, "@") {
			if len(fields) < 2 {
				keep = append(keep, line)
				continue
			}
			hosts = fields[1]
		}
		named := false
		for _, h := range strings.Split(hosts, ",") {
			if aliases[h] {
				named = true
				break
			}
		}
		if !named {
			keep = append(keep, line)
		}
	}
	return []byte(strings.Join(keep, "\n"))
}

func promptYesNo(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("cannot prompt for host key trust: stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("host key prompt failed: %w", err)
	}
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "y" || a == "yes", nil
}
