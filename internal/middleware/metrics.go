package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics holds Prometheus collectors for HTTP traffic and order flow
type Metrics struct {
	gatherer prometheus.Gatherer

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	ordersPlaced    *prometheus.CounterVec
	orderValue      prometheus.Histogram
	refundsCredited *prometheus.CounterVec
	refundAmount    *prometheus.CounterVec
}

// NewMetrics creates collectors and registers them on reg
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "storefront"
	}

	m := &Metrics{
		gatherer: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path", "status"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders placed by payment method",
		}, []string{"payment_method"}),
		orderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_value",
			Help:      "Order total price",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000},
		}),
		refundsCredited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_refunds_total",
			Help:      "Wallet credits by reason",
		}, []string{"reason"}),
		refundAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_refund_amount_total",
			Help:      "Amount credited to wallets by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestsInFlight,
		m.ordersPlaced,
		m.orderValue,
		m.refundsCredited,
		m.refundAmount,
	)
	return m
}

// Middleware records request metrics labelled by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// OrderPlaced 记录一次下单
func (m *Metrics) OrderPlaced(paymentMethod string, total decimal.Decimal) {
	m.ordersPlaced.WithLabelValues(paymentMethod).Inc()
	m.orderValue.Observe(total.InexactFloat64())
}

// RefundCredited 记录一次钱包入账
func (m *Metrics) RefundCredited(reason string, amount decimal.Decimal) {
	m.refundsCredited.WithLabelValues(reason).Inc()
	m.refundAmount.WithLabelValues(reason).Add(amount.InexactFloat64())
}
