package bootstrap

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// cronParser accepts five-field expressions and descriptors such as "@every 1m".
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// SetupSchedules registers the refresh and publish drivers. A run that is
// still going when its next tick fires is skipped.
func SetupSchedules(deps *CommandDeps, services *ServiceComponents) (*cron.Cron, error) {
	loc, err := deps.Config.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	cronLog := cronLogger{log: deps.Logger.With(logger.String("component", "cron"))}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if _, err = c.AddFunc(deps.Config.Scheduler.RefreshSchedule, func() {
		RunRefresh(context.Background(), deps.Logger, services)
	}); err != nil {
		return nil, fmt.Errorf("schedule refresh %q: %w", deps.Config.Scheduler.RefreshSchedule, err)
	}

	if _, err = c.AddFunc(deps.Config.Publish.Schedule, func() {
		RunPublish(context.Background(), deps.Logger, services)
	}); err != nil {
		return nil, fmt.Errorf("schedule publish %q: %w", deps.Config.Publish.Schedule, err)
	}

	return c, nil
}

// RunRefresh runs one refresh pass. The scheduler logs its own summary.
func RunRefresh(ctx context.Context, log logger.Logger, services *ServiceComponents) {
	if _, err := services.Refresh.RunOnce(ctx); err != nil {
		log.Error("Refresh pass failed", logger.Error(err))
	}
}

// RunPublish runs one executor batch.
func RunPublish(ctx context.Context, log logger.Logger, services *ServiceComponents) {
	if processed, err := services.Executor.RunOnce(ctx); err != nil {
		log.Error("Publish batch failed", logger.Int("processed", processed), logger.Error(err))
	}
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(keysAndValues []any) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
