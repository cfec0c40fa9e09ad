//go:build !linux

package systemdmanager

import "context"

type Manager struct{}

func New() *Manager { return &Manager{} }

func (m *Manager) Run(context.Context, Action, string) error { return ErrUnsupported }

func (m *Manager) Status(context.Context, string) (UnitStatus, error) {
	return UnitStatus{}, ErrUnsupported
}

func (m *Manager) Close() error { return nil }
