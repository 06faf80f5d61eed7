package reconcile

import "github.com/VictoriaMetrics/metrics"

var (
	// sync pagination
	syncPageFetchedCounter = metrics.GetOrCreateCounter(`reconcile_sync_pages_total{result="fetched"}`)
	syncPageFailedCounter  = metrics.GetOrCreateCounter(`reconcile_sync_pages_total{result="fetch_failed"}`)

	// sync per payment
	syncPaymentNotEventCounter  = metrics.GetOrCreateCounter(`reconcile_sync_payments_total{result="not_event"}`)
	syncPaymentDuplicateCounter = metrics.GetOrCreateCounter(`reconcile_sync_payments_total{result="customer_seen"}`)
	syncPaymentRejectedCounter  = metrics.GetOrCreateCounter(`reconcile_sync_payments_total{result="rejected"}`)

	// sync per customer
	syncCustomerInsertedCounter  = metrics.GetOrCreateCounter(`reconcile_sync_customers_total{result="inserted"}`)
	syncCustomerUpdatedCounter   = metrics.GetOrCreateCounter(`reconcile_sync_customers_total{result="updated"}`)
	syncCustomerUnchangedCounter = metrics.GetOrCreateCounter(`reconcile_sync_customers_total{result="unchanged"}`)
	syncCustomerFailedCounter    = metrics.GetOrCreateCounter(`reconcile_sync_customers_total{result="failed"}`)

	syncDurationHistogram = metrics.GetOrCreateHistogram(`reconcile_sync_duration_milliseconds`)

	// correction per registration
	correctionUpdatedCounter  = metrics.GetOrCreateCounter(`reconcile_correction_total{result="updated"}`)
	correctionNoChangeCounter = metrics.GetOrCreateCounter(`reconcile_correction_total{result="no_change"}`)
	correctionFailedCounter   = metrics.GetOrCreateCounter(`reconcile_correction_total{result="failed"}`)

	correctionDurationHistogram = metrics.GetOrCreateHistogram(`reconcile_correction_duration_milliseconds`)

	purgedCounter = metrics.GetOrCreateCounter(`reconcile_purged_registrations_total`)
)
