// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ResultSuccess labels a flow that completed. Failures are labeled with
// their Kind.
const ResultSuccess = "success"

// Metrics holds the counters reported by the services.
// A nil *Metrics records nothing.
type Metrics struct {
	Registrations      *prometheus.CounterVec
	Logins             *prometheus.CounterVec
	Lockouts           prometheus.Counter
	AccountingFailures prometheus.Counter
	HashUpgrades       prometheus.Counter
	Refreshes          *prometheus.CounterVec
	PasswordChanges    *prometheus.CounterVec
}

// NewMetrics creates the identity counters and registers them with reg.
// A nil reg leaves them unregistered.
// Panics if registration fails (following prometheus convention).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_registrations_total",
			Help: "Total number of registration attempts",
		}, []string{"result"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_logins_total",
			Help: "Total number of login attempts",
		}, []string{"result"}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "identity_lockouts_total",
			Help: "Total number of credential lockouts triggered",
		}),
		AccountingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "identity_lockout_accounting_failures_total",
			Help: "Total number of failed login attempts that could not be recorded",
		}),
		HashUpgrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "identity_hash_upgrades_total",
			Help: "Total number of password digests rehashed with current parameters",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_refreshes_total",
			Help: "Total number of session refresh attempts",
		}, []string{"result"}),
		PasswordChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_password_changes_total",
			Help: "Total number of password change attempts",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Registrations,
			m.Logins,
			m.Lockouts,
			m.AccountingFailures,
			m.HashUpgrades,
			m.Refreshes,
			m.PasswordChanges,
		)
	}
	return m
}

func resultLabel(err error) string {
	if err == nil {
		return ResultSuccess
	}
	return string(KindOf(err))
}

func (m *Metrics) registration(err error) {
	if m != nil {
		m.Registrations.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) login(err error) {
	if m != nil {
		m.Logins.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) lockout() {
	if m != nil {
		m.Lockouts.Inc()
	}
}

func (m *Metrics) accountingFailure() {
	if m != nil {
		m.AccountingFailures.Inc()
	}
}

func (m *Metrics) hashUpgrade() {
	if m != nil {
		m.HashUpgrades.Inc()
	}
}

func (m *Metrics) refresh(err error) {
	if m != nil {
		m.Refreshes.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) passwordChange(err error) {
	if m != nil {
		m.PasswordChanges.WithLabelValues(resultLabel(err)).Inc()
	}
}
