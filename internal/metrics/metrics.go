package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_total",
		Help: "Total number of orders accepted.",
	})

	OrderLinesRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_lines_rejected_total",
		Help: "Total number of order lines rejected for unknown item or insufficient stock.",
	})

	BansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_bans_total",
		Help: "Total number of ban-email actions applied.",
	})

	MailSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_mail_sent_total",
		Help: "Total number of notification emails delivered.",
	})

	MailFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_mail_failed_total",
		Help: "Total number of notification emails that exhausted their retries.",
	})

	ChatWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_chat_waiting",
		Help: "Current number of visitors waiting for a support chat.",
	})

	ChatPairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_chat_pairs",
		Help: "Current number of active support chat pairs.",
	})

	RequestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_request_errors_total",
		Help: "Total number of failed requests by handler.",
	},
		[]string{"handler"},
	)
)
