package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// InvoiceSubmitTotal counts invoice submission outcomes.
	InvoiceSubmitTotal *prometheus.CounterVec
	// StockDecrementTotal counts per-product stock update outcomes after submit.
	StockDecrementTotal *prometheus.CounterVec
	// DebtRecordTotal counts debt registration outcomes.
	DebtRecordTotal *prometheus.CounterVec
	// DraftOperationTotal counts draft mutations by operation and result.
	DraftOperationTotal *prometheus.CounterVec
	// SubmitDuration records end-to-end invoice submission latency in milliseconds.
	SubmitDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		InvoiceSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_submit_total",
			Help:      "Count of invoice submission outcomes.",
		}, []string{"result"})
		StockDecrementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_decrement_total",
			Help:      "Count of per-product stock update outcomes after invoice creation.",
		}, []string{"result"})
		DebtRecordTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debt_record_total",
			Help:      "Count of debt registration outcomes.",
		}, []string{"result"})
		DraftOperationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_operation_total",
			Help:      "Count of draft mutations by operation and result.",
		}, []string{"operation", "result"})
		SubmitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoice_submit_duration_ms",
			Help:      "End-to-end invoice submission latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		})

		mustRegisterCollector(reg, InvoiceSubmitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceSubmitTotal = v
			}
		})
		mustRegisterCollector(reg, StockDecrementTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StockDecrementTotal = v
			}
		})
		mustRegisterCollector(reg, DebtRecordTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DebtRecordTotal = v
			}
		})
		mustRegisterCollector(reg, DraftOperationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DraftOperationTotal = v
			}
		})
		mustRegisterCollector(reg, SubmitDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				SubmitDuration = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
