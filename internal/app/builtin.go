package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
	"cadence/pkg/systemdmanager"

	"github.com/kballard/go-shellquote"
)

// maxOutput bounds how much command output is logged per run.
const maxOutput = 4 << 10

// unitRunner is the part of systemdmanager.Manager the systemd builtin needs.
type unitRunner interface {
	Run(ctx context.Context, a systemdmanager.Action, unit string) error
}

// registerBuiltins installs the callables declarative jobs can name.
//
// Every builtin honors kwargs.once: after the first successful run the job
// cancels itself.
func registerBuiltins(r *scheduler.Registry, log logx.Logger, units unitRunner) error {
	builtins := map[string]scheduler.Func{
		"noop":    func(context.Context, scheduler.Call) (scheduler.Result, error) { return scheduler.Continue, nil },
		"log":     logBuiltin(log),
		"sleep":   sleepBuiltin,
		"exec":    execBuiltin(log),
		"systemd": systemdBuiltin(units),
	}
	for name, fn := range builtins {
		if err := r.Register(name, once(fn)); err != nil {
			return err
		}
	}
	return nil
}

func once(fn scheduler.Func) scheduler.Func {
	return func(ctx context.Context, call scheduler.Call) (scheduler.Result, error) {
		res, err := fn(ctx, call)
		if err == nil && truthy(call.Kwargs["once"]) {
			return scheduler.Cancel, nil
		}
		return res, err
	}
}

func logBuiltin(log logx.Logger) scheduler.Func {
	log = log.With(logx.String("comp", "job"))
	return func(_ context.Context, call scheduler.Call) (scheduler.Result, error) {
		msg := "job ran"
		args := call.Args
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				msg, args = s, args[1:]
			}
		}
		fields := []logx.Field{logx.String("job", call.JobID), logx.Time("scheduled", call.Scheduled)}
		if len(args) > 0 {
			fields = append(fields, logx.Any("args", args))
		}
		for k, v := range call.Kwargs {
			if k != "once" {
				fields = append(fields, logx.Any(k, v))
			}
		}
		log.Info(msg, fields...)
		return scheduler.Continue, nil
	}
}

func sleepBuiltin(ctx context.Context, call scheduler.Call) (scheduler.Result, error) {
	raw := call.Kwargs["duration"]
	if raw == nil && len(call.Args) > 0 {
		raw = call.Args[0]
	}
	d, err := durationArg(raw)
	if err != nil {
		return scheduler.Continue, fmt.Errorf("sleep: %w", err)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return scheduler.Continue, ctx.Err()
	case <-t.C:
		return scheduler.Continue, nil
	}
}

func execBuiltin(log logx.Logger) scheduler.Func {
	log = log.With(logx.String("comp", "exec"))
	return func(ctx context.Context, call scheduler.Call) (scheduler.Result, error) {
		line, _ := call.Kwargs["cmd"].(string)
		if line == "" && len(call.Args) > 0 {
			line, _ = call.Args[0].(string)
		}
		argv, err := shellquote.Split(line)
		if err != nil {
			return scheduler.Continue, fmt.Errorf("exec: parse %q: %w", line, err)
		}
		if len(argv) == 0 {
			return scheduler.Continue, errors.New("exec: cmd required")
		}

		if raw, ok := call.Kwargs["timeout"]; ok {
			d, err := durationArg(raw)
			if err != nil {
				return scheduler.Continue, fmt.Errorf("exec: timeout: %w", err)
			}
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if dir, ok := call.Kwargs["dir"].(string); ok {
			cmd.Dir = dir
		}
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		start := time.Now()
		err = cmd.Run()
		fields := []logx.Field{
			logx.String("job", call.JobID),
			logx.String("cmd", argv[0]),
			logx.Duration("took", time.Since(start)),
		}
		if s := strings.TrimSpace(out.String()); s != "" {
			if len(s) > maxOutput {
				s = s[:maxOutput] + "..."
			}
			fields = append(fields, logx.String("output", s))
		}
		if err != nil {
			log.Warn("command failed", append(fields, logx.Err(err))...)
			return scheduler.Continue, fmt.Errorf("exec %s: %w", argv[0], err)
		}
		log.Debug("command finished", fields...)
		return scheduler.Continue, nil
	}
}

func systemdBuiltin(units unitRunner) scheduler.Func {
	return func(ctx context.Context, call scheduler.Call) (scheduler.Result, error) {
		unit, _ := call.Kwargs["unit"].(string)
		if unit == "" && len(call.Args) > 0 {
			unit, _ = call.Args[0].(string)
		}
		if strings.TrimSpace(unit) == "" {
			return scheduler.Continue, errors.New("systemd: unit required")
		}
		action, _ := call.Kwargs["action"].(string)
		a, err := systemdmanager.ParseAction(action)
		if err != nil {
			return scheduler.Continue, err
		}
		return scheduler.Continue, units.Run(ctx, a, unit)
	}
}

// durationArg accepts a Go duration string or a number of seconds.
func durationArg(v any) (time.Duration, error) {
	switch x := v.(type) {
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(x))
		if err != nil {
			return 0, err
		}
		if d < 0 {
			return 0, fmt.Errorf("negative duration %s", d)
		}
		return d, nil
	case float64:
		if x < 0 {
			return 0, fmt.Errorf("negative duration %vs", x)
		}
		return time.Duration(x * float64(time.Second)), nil
	case int:
		if x < 0 {
			return 0, fmt.Errorf("negative duration %ds", x)
		}
		return time.Duration(x) * time.Second, nil
	case nil:
		return 0, errors.New("duration required")
	}
	return 0, fmt.Errorf("unsupported duration %v (%T)", v, v)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "true" || s == "yes" || s == "1"
	case float64:
		return x != 0
	case int:
		return x != 0
	}
	return false
}
