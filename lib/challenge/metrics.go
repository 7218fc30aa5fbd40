package challenge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxosd_challenges_issued",
		Help: "The total number of authentication challenges issued",
	})

	challengesRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxosd_challenges_rate_limited",
		Help: "The total number of challenge requests rejected because the requester's pool was full",
	})

	challengesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxosd_challenges_expired",
		Help: "The total number of challenges that timed out before being consumed",
	})

	challengesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxosd_challenges_consumed",
		Help: "The total number of challenges burned by a successful verification",
	})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxosd_verifications_total",
		Help: "Verification attempts by outcome",
	}, []string{"outcome"})
)
