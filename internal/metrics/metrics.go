// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TxRetries counts serializable transactions retried after a conflict
	TxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircollection_tx_retries_total",
		Help: "Serializable transactions retried after a serialization conflict.",
	})

	// InvitesCreated counts successfully created invites
	InvitesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircollection_invites_created_total",
		Help: "Invites created.",
	})

	// InvitesRedeemed counts successful invite redemptions
	InvitesRedeemed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircollection_invites_redeemed_total",
		Help: "Invites redeemed into couples.",
	})

	// PushesSent counts push notifications accepted by APNs
	PushesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircollection_pushes_sent_total",
		Help: "Push notifications accepted by APNs.",
	})

	// PushesFailed counts push notifications rejected or errored
	PushesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircollection_pushes_failed_total",
		Help: "Push notifications rejected by APNs or failed in transit.",
	})
)
