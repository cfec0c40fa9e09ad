package app

import (
	"cadence/internal/config"
	"cadence/internal/task/autosave"
	"cadence/internal/task/engine"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Format:  cfg.Logging.Format,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	tick, err := config.ParseDurationField("scheduler.tick", cfg.Scheduler.Tick)
	if err != nil {
		return scheduler.Config{}, err
	}
	drain, err := scheduler.ParseDrainPolicy(cfg.Scheduler.Drain)
	if err != nil {
		return scheduler.Config{}, err
	}
	epoch, err := scheduler.ParseEpoch(cfg.Scheduler.Epoch)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{Tick: tick, Drain: drain, Epoch: epoch}, nil
}

func mapEngineConfig(cfg *config.Config) engine.Config {
	return engine.Config{HistorySize: cfg.Executor.HistorySize}
}

func mapAutosaveConfig(cfg *config.Config) autosave.Config {
	return autosave.Config{
		Enabled:    cfg.Snapshot.Enabled,
		Schedule:   cfg.Snapshot.Schedule,
		SaveOnStop: cfg.Snapshot.SaveOnStop,
	}
}
