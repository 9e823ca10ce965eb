package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_auth_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	rotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_auth_refresh_rotations_total",
		Help: "Refresh rotation attempts by result.",
	}, []string{"result"})

	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_auth_registrations_total",
		Help: "Registration attempts by result.",
	}, []string{"result"})
)
