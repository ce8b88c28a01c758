package remote

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const defaultDialTimeout = 15 * time.Second

// Config configures an SFTP connection.
type Config struct {
	Target    string // user@host
	Port      int
	BatchMode bool // never prompt; fail instead
	Timeout   time.Duration

	// KnownHosts overrides ~/.ssh/known_hosts.
	KnownHosts string
	// KeyDir overrides ~/.ssh for default private keys.
	KeyDir string

	Logger *zap.Logger
}

// ParseTarget splits user@host.
func ParseTarget(target string) (user, host string, err error) {
	if strings.TrimSpace(target) == "" {
		return "", "", fmt.Errorf("remote target is required")
	}
	user, host, ok := strings.Cut(target, "@")
	if !ok || user == "" || host == "" {
		return "", "", fmt.Errorf("invalid remote target %q: expected user@host", target)
	}
	return user, host, nil
}

// LooksRemote reports whether arg names a user@host target rather than a
// local path.
func LooksRemote(arg string) bool {
	if strings.ContainsAny(arg, `/\`) {
		return false
	}
	_, _, err := ParseTarget(arg)
	return err == nil
}

var dialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

var sshNewClientConn = ssh.NewClientConn

// Dial connects to cfg.Target and starts the SFTP subsystem.
func Dial(ctx context.Context, cfg Config) (*SFTPFileSystem, error) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("ssh port must be between 1 and 65535, got %d", cfg.Port)
	}
	user, host, err := ParseTarget(cfg.Target)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	store, err := openHostKeyStore(cfg.KnownHosts, cfg.BatchMode, log)
	if err != nil {
		return nil, err
	}
	hostCB, err := store.callback(host, cfg.Port)
	if err != nil {
		return nil, err
	}

	creds := &credentials{user: user, host: host, batch: cfg.BatchMode, keyDir: cfg.KeyDir, log: log}
	auth, err := creds.methods()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	sshClient, err := connectSSH(dialCtx, addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostCB,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("SSH connection to %s failed: %w", addr, err)
	}

	sc, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("cannot start SFTP subsystem: %w", err)
	}

	blockSize := probeBlockSize(sc, defaultRemotePath)
	log.Info("sftp connected", zap.String("addr", addr), zap.String("user", user), zap.Uint64("block_size", blockSize))
	return newFileSystem(sc, &sessionCloser{ssh: sshClient, sftp: sc}, blockSize), nil
}

func connectSSH(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := dialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// Closing the conn interrupts a handshake stuck past the deadline.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	c, chans, reqs, err := sshNewClientConn(conn, addr, config)
	close(done)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

type sessionCloser struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (c *sessionCloser) Close() error {
	var retErr error
	if err := c.sftp.Close(); err != nil {
		retErr = err
	}
	if err := c.ssh.Close(); err != nil && retErr == nil {
		retErr = err
	}
	return retErr
}
