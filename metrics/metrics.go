package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	fetchedTransactionsCounter   prometheus.Counter
	insertedTransactionsCounter  prometheus.Counter
	duplicateTransactionsCounter prometheus.Counter
	deletedTransactionsCounter   prometheus.Counter
	recipientsGauge              prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	m := Metrics{
		// metrics for the fetch and store phases
		fetchedTransactionsCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_fetched_transactions_total", namespace),
			Help: "The number of transactions fetched from the explorer",
		}),
		insertedTransactionsCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_inserted_transactions_total", namespace),
			Help: "The number of transactions stored",
		}),
		duplicateTransactionsCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_duplicate_transactions_total", namespace),
			Help: "The number of fetched transactions skipped as already stored",
		}),
		// metrics for the cleanup sweep
		deletedTransactionsCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_deleted_transactions_total", namespace),
			Help: "The number of stored transactions removed by the cleanup sweep",
		}),
		recipientsGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_recipients", namespace),
			Help: "The number of distinct recipients currently in the store",
		}),
	}
	return &m
}

func (metrics *Metrics) AddFetchedTransactions(count int) {
	metrics.fetchedTransactionsCounter.Add(float64(count))
}

func (metrics *Metrics) AddInsertedTransactions(inserted, duplicates int) {
	metrics.insertedTransactionsCounter.Add(float64(inserted))
	metrics.duplicateTransactionsCounter.Add(float64(duplicates))
}

func (metrics *Metrics) AddDeletedTransactions(count int) {
	metrics.deletedTransactionsCounter.Add(float64(count))
}

func (metrics *Metrics) SetRecipients(count int) {
	metrics.recipientsGauge.Set(float64(count))
}
