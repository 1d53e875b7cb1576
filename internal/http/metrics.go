package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "edumanage_auth_attempts_total",
	Help: "Authentication attempts by method and result.",
}, []string{"method", "result"})

func countAuth(method, result string) {
	authAttempts.WithLabelValues(method, result).Inc()
}
