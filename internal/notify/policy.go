package notify

import (
	"time"

	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds delivery attempts for one kind of job. Attempts counts
// the first try, so Attempts=3 means at most two retries.
type RetryPolicy struct {
	Attempts    int
	Base        time.Duration
	Max         time.Duration
	Exponential bool
}

// backoff builds the go-retry schedule for the policy.
func (p RetryPolicy) backoff() retry.Backoff {
	var b retry.Backoff
	if p.Exponential {
		b = retry.NewExponential(p.Base)
	} else {
		b = retry.NewConstant(p.Base)
	}
	if p.Max > 0 {
		b = retry.WithCappedDuration(p.Max, b)
	}
	b = retry.WithJitterPercent(10, b)

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

// Policies maps job kinds to retry policies.
type Policies struct {
	Task        RetryPolicy
	Digest      RetryPolicy
	Maintenance RetryPolicy
}

// DefaultPolicies returns the production schedule: single-task jobs three
// attempts from 30s doubling to a 60s cap, digests three attempts five
// minutes apart, maintenance reports two attempts an hour apart.
func DefaultPolicies() Policies {
	return Policies{
		Task:        RetryPolicy{Attempts: 3, Base: 30 * time.Second, Max: 60 * time.Second, Exponential: true},
		Digest:      RetryPolicy{Attempts: 3, Base: 5 * time.Minute},
		Maintenance: RetryPolicy{Attempts: 2, Base: time.Hour},
	}
}

// PoliciesFromConfig applies the configured delays to the default attempt counts.
func PoliciesFromConfig(cfg config.DispatcherConfig) Policies {
	p := DefaultPolicies()
	if cfg.TaskBaseDelay > 0 {
		p.Task.Base = cfg.TaskBaseDelay
	}
	if cfg.TaskMaxDelay > 0 {
		p.Task.Max = cfg.TaskMaxDelay
	}
	if cfg.DigestDelay > 0 {
		p.Digest.Base = cfg.DigestDelay
	}
	if cfg.MaintenanceDelay > 0 {
		p.Maintenance.Base = cfg.MaintenanceDelay
	}
	return p
}

// For returns the policy governing kind.
func (p Policies) For(kind Kind) RetryPolicy {
	switch kind {
	case KindReminder, KindDailySummary:
		return p.Digest
	case KindMaintenance:
		return p.Maintenance
	default:
		return p.Task
	}
}
