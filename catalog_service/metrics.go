package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_gateway_writes_total",
		Help: "Mutations accepted by the gateway, by entity and write mode.",
	}, []string{"entity", "mode"})

	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_gateway_catalog_requests_total",
		Help: "Searches against the third-party catalog, by outcome.",
	}, []string{"outcome"})

	eventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_gateway_events_consumed_total",
		Help: "Notifications read from the topic, by type and outcome.",
	}, []string{"type", "outcome"})
)

func writeMode(streamConsume bool) string {
	if streamConsume {
		return "stream"
	}
	return "sync"
}
