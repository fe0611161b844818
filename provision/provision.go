// Package provision readies freshly launched instances: waits for SSH,
// installs iperf3, checks its version, and manages the server daemons.
package provision

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hanksong/awsbenchmark/target"
	"github.com/hanksong/awsbenchmark/util"
	goversion "github.com/hashicorp/go-version"
)

// MinIperfVersion is the oldest iperf3 whose -J output we parse. The
// end.sum_sent/sum_received layout is stable from 3.1 on.
const MinIperfVersion = "3.1.0"

const installCmd = "sudo amazon-linux-extras install -y epel && sudo yum install -y iperf3"

// WaitReachable blocks until the instance accepts SSH sessions as user, or
// gives up after several minutes. Cloud-init keeps sshd flapping for a while
// after launch, so failures at first are expected.
func WaitReachable(t target.Target, user string) error {
	for i := 0; i < 30; i++ {
		buf, err := t.RunCommand("whoami")
		if err != nil || strings.TrimSpace(string(buf)) != user {
			if err != nil {
				slog.Debug("reachability check failed", slog.String("error", err.Error()))
			} else {
				slog.Debug("reachability check returned unexpected user", slog.String("user", strings.TrimSpace(string(buf))))
			}
			time.Sleep(10 * time.Second)
			continue
		}
		return nil
	}
	return fmt.Errorf("timed out waiting for instance to be reachable")
}

// InstallIperf installs iperf3 and verifies its version. The install is
// retried because package mirrors flake right after boot.
func InstallIperf(t target.Target) error {
	var out []byte
	var err error
	for i := 0; i < 3; i++ {
		out, err = t.RunCommand(installCmd)
		if err != nil {
			slog.Debug("failed to install iperf3, will try again", slog.String("command output", string(out)), slog.String("error", err.Error()))
			time.Sleep(30 * time.Second)
		} else {
			break
		}
	}
	if err != nil {
		slog.Error("failed to install iperf3", slog.String("command output", string(out)), slog.String("error", err.Error()))
		return err
	}
	return verifyIperfVersion(t)
}

func verifyIperfVersion(t target.Target) error {
	out, err := t.RunCommand("iperf3 --version")
	if err != nil {
		return fmt.Errorf("running iperf3 --version: %w", err)
	}
	installed, err := ParseIperfVersion(out)
	if err != nil {
		return err
	}

	min := goversion.Must(goversion.NewVersion(MinIperfVersion))
	if installed.LessThan(min) {
		return fmt.Errorf("installed iperf3 %s is older than required %s", installed, min)
	}
	slog.Debug("verified iperf3 version", slog.String("version", installed.String()))
	return nil
}

// ParseIperfVersion extracts the version from `iperf3 --version` output,
// whose first line looks like "iperf 3.1.7 (cJSON 1.5.2)".
func ParseIperfVersion(out []byte) (*goversion.Version, error) {
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return nil, fmt.Errorf("unexpected iperf3 --version output: %q", line)
	}
	v, err := goversion.NewVersion(parts[1])
	if err != nil {
		return nil, fmt.Errorf("parsing iperf3 version %q: %w", parts[1], err)
	}
	return v, nil
}

// StartServer daemonizes an iperf3 server on the instance. An already
// running server is fine; the port is simply reused.
func StartServer(t target.Target) error {
	out, err := t.RunCommand("iperf3 -s -D")
	if err != nil && !strings.Contains(string(out), "bind") {
		return fmt.Errorf("starting iperf3 server: %w: %s", err, util.LastNonEmptyLine(out))
	}
	// iperf3 forks before binding, so give the daemon a moment.
	time.Sleep(2 * time.Second)
	return nil
}

// StopServers kills iperf3 daemons on every instance. Errors are logged and
// swallowed: a host with no daemon running is not a failure.
func StopServers(targets []target.Target) {
	for _, t := range targets {
		if out, err := t.RunCommand("pkill iperf3"); err != nil {
			slog.Debug("pkill iperf3 failed", slog.String("output", strings.TrimSpace(string(out))), slog.String("error", err.Error()))
		}
	}
}
