package config

import "time"

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// PollIntervalDuration returns the scan interval as a duration.
func (s Scheduler) PollIntervalDuration() time.Duration {
	return secondsToDuration(s.PollInterval)
}

// ErrorRetryIntervalDuration returns the post-failure backoff as a duration.
func (s Scheduler) ErrorRetryIntervalDuration() time.Duration {
	return secondsToDuration(s.ErrorRetryInterval)
}

// HeartbeatIntervalDuration returns the heartbeat cadence as a duration.
func (s Scheduler) HeartbeatIntervalDuration() time.Duration {
	return secondsToDuration(s.HeartbeatInterval)
}

// HeartbeatTimeoutDuration returns the reclaim threshold as a duration.
func (s Scheduler) HeartbeatTimeoutDuration() time.Duration {
	return secondsToDuration(s.HeartbeatTimeout)
}

// BaseDelayDuration returns the first retry delay as a duration.
func (r Retry) BaseDelayDuration() time.Duration {
	return secondsToDuration(r.BaseDelay)
}

// MaxDelayDuration returns the backoff ceiling as a duration.
func (r Retry) MaxDelayDuration() time.Duration {
	return secondsToDuration(r.MaxDelay)
}

// MinLatencyDuration returns the simulated provider's latency floor.
func (a Analysis) MinLatencyDuration() time.Duration {
	return secondsToDuration(a.MinLatency)
}

// MaxLatencyDuration returns the simulated provider's latency ceiling.
func (a Analysis) MaxLatencyDuration() time.Duration {
	return secondsToDuration(a.MaxLatency)
}

// RequestTimeoutDuration returns the ntfy request timeout as a duration.
func (n Notifications) RequestTimeoutDuration() time.Duration {
	return secondsToDuration(float64(n.RequestTimeout))
}
