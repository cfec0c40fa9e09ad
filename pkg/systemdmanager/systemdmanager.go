// Package systemdmanager starts, stops and inspects systemd units over D-Bus.
package systemdmanager

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupported = errors.New("systemdmanager: unsupported OS (linux only)")

// Action is a unit operation.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionReload  Action = "reload"
)

// ParseAction accepts start, stop, restart and reload (case-insensitive).
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionStart, ActionStop, ActionRestart, ActionReload:
		return a, nil
	case "":
		return ActionRestart, nil
	}
	return "", fmt.Errorf("unknown unit action %q (valid: start, stop, restart, reload)", s)
}

// UnitName appends ".service" to a bare name.
func UnitName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

// UnitStatus is a subset of a unit's D-Bus properties.
type UnitStatus struct {
	Name        string
	LoadState   string // loaded, not-found, ...
	ActiveState string // active, inactive, failed, ...
	SubState    string // running, dead, ...
}

func (s UnitStatus) Active() bool { return s.ActiveState == "active" }
