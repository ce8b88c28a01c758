package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sadopc/diskly/internal/remote"
)

type scanTarget struct {
	Remote      bool
	Path        string
	Destination string // user@host for remote targets
}

// resolveScanTarget interprets the positional arguments. An existing local
// path always wins over a user@host reading of the same argument.
func resolveScanTarget(args []string) (scanTarget, error) {
	if len(args) == 0 {
		return scanTarget{Path: "."}, nil
	}

	first := args[0]
	if pathExists(first) || !strings.Contains(first, "@") || strings.ContainsAny(first, `/\`) {
		if len(args) > 1 {
			return scanTarget{}, fmt.Errorf("too many positional arguments for local scan")
		}
		return scanTarget{Path: first}, nil
	}

	if err := validateRemoteTarget(first); err != nil {
		return scanTarget{}, err
	}
	if len(args) > 2 {
		return scanTarget{}, fmt.Errorf("too many positional arguments for remote scan")
	}

	remotePath := "."
	if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
		remotePath = args[1]
	}
	return scanTarget{Remote: true, Destination: first, Path: remotePath}, nil
}

func validateRemoteTarget(raw string) error {
	if strings.Count(raw, "@") != 1 || !remote.LooksRemote(raw) {
		return fmt.Errorf("invalid remote target %q: expected user@host", raw)
	}
	user, host, _ := remote.ParseTarget(raw)

	if strings.HasPrefix(user, "-") || strings.HasPrefix(host, "-") {
		return fmt.Errorf("invalid remote target %q", raw)
	}
	if strings.ContainsAny(raw, " \t\n\r") {
		return fmt.Errorf("invalid remote target %q: spaces are not allowed", raw)
	}

	if inner, ok := strings.CutPrefix(host, "["); ok {
		addr, rest, closed := strings.Cut(inner, "]")
		switch {
		case !closed:
			return fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
		case addr == "":
			return fmt.Errorf("invalid remote target %q: empty host", raw)
		case rest == "":
			return nil
		case strings.HasPrefix(rest, ":") && isAllDigits(rest[1:]):
			return portError(raw)
		default:
			return fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
		}
	}
	if strings.Contains(host, "]") {
		return fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
	}
	if _, port, ok := strings.Cut(host, ":"); ok && strings.Count(host, ":") == 1 && isAllDigits(port) {
		return portError(raw)
	}
	return nil
}

func portError(raw string) error {
	return fmt.Errorf("remote target %q must not include :port; use -ssh-port", raw)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
