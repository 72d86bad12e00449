package logger

import "time"

type Timer struct {
	StartTime time.Time
	Name      string
	Console   *Console
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.StartTime).Round(time.Millisecond)
}

func (t *Timer) End() time.Duration {
	duration := t.Elapsed()
	t.Console.Info("%s completed in %v", t.Name, duration)
	return duration
}
