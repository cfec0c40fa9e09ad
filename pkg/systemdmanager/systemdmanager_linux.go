//go:build linux

package systemdmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Manager runs unit jobs on the system bus. The connection is opened lazily
// and reopened after it breaks.
type Manager struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func New() *Manager { return &Manager{} }

func (m *Manager) connLocked(ctx context.Context) (*dbus.Conn, error) {
	if m.conn != nil && m.conn.Connected() {
		return m.conn, nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("systemd dbus connect: %w", err)
	}
	m.conn = conn
	return conn, nil
}

// Run performs a on the unit and waits for systemd to report the job result.
func (m *Manager) Run(ctx context.Context, a Action, unit string) error {
	unit = UnitName(unit)
	if unit == "" {
		return errors.New("unit required")
	}
	m.mu.Lock()
	conn, err := m.connLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	done := make(chan string, 1)
	switch a {
	case ActionStart:
		_, err = conn.StartUnitContext(ctx, unit, "replace", done)
	case ActionStop:
		_, err = conn.StopUnitContext(ctx, unit, "replace", done)
	case ActionRestart:
		_, err = conn.RestartUnitContext(ctx, unit, "replace", done)
	case ActionReload:
		_, err = conn.ReloadUnitContext(ctx, unit, "replace", done)
	default:
		return fmt.Errorf("unknown unit action %q", a)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", a, unit, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("%s %s: job %s", a, unit, result)
		}
		return nil
	}
}

func (m *Manager) Status(ctx context.Context, unit string) (UnitStatus, error) {
	unit = UnitName(unit)
	m.mu.Lock()
	conn, err := m.connLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return UnitStatus{}, err
	}
	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return UnitStatus{}, fmt.Errorf("status %s: %w", unit, err)
	}
	str := func(k string) string {
		s, _ := props[k].(string)
		return s
	}
	return UnitStatus{
		Name:        unit,
		LoadState:   str("LoadState"),
		ActiveState: str("ActiveState"),
		SubState:    str("SubState"),
	}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	return nil
}
