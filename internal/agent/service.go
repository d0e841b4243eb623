package agent

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// UnitConfig parameterizes the rendered systemd unit.
type UnitConfig struct {
	Description string
	ExecStart   string
	User        string
}

// RenderUnit renders a systemd service unit for the node process.
func RenderUnit(cfg UnitConfig) string {
	user := cfg.User
	if user == "" {
		user = "root"
	}
	var b strings.Builder
	b.WriteString("[Unit]\n")
	fmt.Fprintf(&b, "Description=%s\n", cfg.Description)
	b.WriteString("After=network-online.target\n")
	b.WriteString("Wants=network-online.target\n")
	b.WriteString("\n[Service]\n")
	fmt.Fprintf(&b, "User=%s\n", user)
	fmt.Fprintf(&b, "ExecStart=%s\n", cfg.ExecStart)
	b.WriteString("Restart=always\n")
	b.WriteString("RestartSec=5\n")
	b.WriteString("LimitNOFILE=40000\n")
	b.WriteString("\n[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")
	return b.String()
}

// SystemdManager installs units on the local machine.
type SystemdManager struct {
	// UnitDir overrides the unit file location, for tests.
	UnitDir string
}

func (m *SystemdManager) unitDir() string {
	if m.UnitDir != "" {
		return m.UnitDir
	}
	return "/etc/systemd/system"
}

// Install writes the unit file, reloads systemd, and (re)starts the
// service.
func (m *SystemdManager) Install(unitName, unit string) error {
	path := fmt.Sprintf("%s/%s.service", m.unitDir(), unitName)
	if err := os.WriteFile(path, []byte(unit), 0o644); err != nil {
		return fmt.Errorf("failed to write unit file %s: %w", path, err)
	}

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", unitName + ".service"},
		{"restart", unitName + ".service"},
	} {
		cmd := exec.Command("systemctl", args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("systemctl %s failed: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
		}
	}
	return nil
}
