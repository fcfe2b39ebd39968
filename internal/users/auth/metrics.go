// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "github.com/prometheus/client_golang/prometheus"

// # Credential Flow Metrics

var (
	registrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "registrations_total",
		Help:      "Accounts created.",
	})

	verificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "verifications_total",
		Help:      "Email verification confirmations by outcome.",
	}, []string{"outcome"})

	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "notifications_total",
		Help:      "Notification hand-offs by template and delivery status.",
	}, []string{"template", "status"})

	passwordResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "password_resets_total",
		Help:      "Password reset requests and redemptions.",
	}, []string{"stage"})

	failedLoginsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "failed_logins_total",
		Help:      "Rejected login attempts that were recorded.",
	})

	lockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "lockouts_total",
		Help:      "Login attempts answered with the lockout message.",
	})
)

// Verification outcomes.
const (
	outcomeVerified        = "verified"
	outcomeAlreadyVerified = "already_verified"
	outcomeExpired         = "expired"
	outcomeInvalid         = "invalid"
	outcomeReplayed        = "replayed"
)

// Password reset stages.
const (
	stageRequested = "requested"
	stageRedeemed  = "redeemed"
)

// RegisterMetrics adds the credential flow collectors to reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		registrationsTotal,
		verificationsTotal,
		notificationsTotal,
		passwordResetsTotal,
		failedLoginsTotal,
		lockoutsTotal,
	)
}

// observeDelivery counts one notifier hand-off.
func observeDelivery(template string, delivered bool) {
	status := "delivered"
	if !delivered {
		status = "failed"
	}
	notificationsTotal.WithLabelValues(template, status).Inc()
}
