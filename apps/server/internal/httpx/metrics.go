package httpx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersSigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderattest_orders_signed_total",
		Help: "Orders signed with the server keypair at creation.",
	})
	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderattest_verifications_total",
		Help: "Read-path signature verifications by outcome.",
	}, []string{"outcome"})
	verificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderattest_verification_failures_total",
		Help: "Stored orders whose signature failed re-verification.",
	})
)
