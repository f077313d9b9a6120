package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================
// HTTP request metrics, Go runtime metrics and the bot's business metrics,
// all on a private registry exposed through Handler.
// =============================================================================

var (
	registry = prometheus.NewRegistry()

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	// Conversation metrics
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_total",
			Help: "Inbound and outbound chat messages",
		},
		[]string{"direction", "outcome"},
	)

	messageDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_message_handling_seconds",
			Help:    "Time to handle one inbound message, including provider calls",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	flowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flow_transitions_total",
			Help: "Session state transitions by flow and target state",
		},
		[]string{"flow", "state"},
	)

	sessionResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_session_resets_total",
			Help: "Session resets by reason",
		},
		[]string{"reason"},
	)

	// Ledger metrics
	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_transactions_total",
			Help: "Transactions by type and final status",
		},
		[]string{"type", "status"},
	)

	transactionAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_transaction_amount_total",
			Help: "Sum of settled transaction amounts in whole currency units",
		},
		[]string{"type"},
	)

	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_refunds_total",
			Help: "Compensating wallet credits after provider failure",
		},
		[]string{"type"},
	)

	// Provider metrics
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_provider_request_duration_seconds",
			Help:    "External provider call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation", "outcome"},
	)

	kafkaMessagesProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total number of Kafka messages produced",
		},
		[]string{"topic", "outcome"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesTotal,
		messageDuration,
		flowTransitions,
		sessionResets,
		transactionsTotal,
		transactionAmount,
		refundsTotal,
		providerRequestDuration,
		kafkaMessagesProduced,
	)
}

func Registry() *prometheus.Registry {
	return registry
}

// Handler returns a Fiber handler for the /metrics endpoint
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// =============================================================================
// Middleware
// =============================================================================

type Config struct {
	ServiceName string
	SkipPaths   []string
}

// Middleware returns Fiber middleware that records HTTP metrics
func Middleware(cfg Config) fiber.Handler {
	skipPaths := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *fiber.Ctx) error {
		if skipPaths[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		// Label values outlive the request; fiber's strings point into
		// reused buffers.
		method := utils.CopyString(c.Method())
		path := utils.CopyString(c.Route().Path)
		status := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(cfg.ServiceName, method, path, status).Inc()
		httpRequestDuration.WithLabelValues(cfg.ServiceName, method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// =============================================================================
// Metric Recording Functions
// =============================================================================

func RecordInboundMessage(outcome string, d time.Duration) {
	messagesTotal.WithLabelValues("inbound", outcome).Inc()
	messageDuration.Observe(d.Seconds())
}

func RecordOutboundMessage(outcome string) {
	messagesTotal.WithLabelValues("outbound", outcome).Inc()
}

func RecordTransition(flow, state string) {
	flowTransitions.WithLabelValues(flow, state).Inc()
}

func RecordSessionReset(reason string) {
	sessionResets.WithLabelValues(reason).Inc()
}

// RecordTransaction counts a transaction reaching status; settled amounts
// are only added for completed ones.
func RecordTransaction(txType, status string, amount int64) {
	transactionsTotal.WithLabelValues(txType, status).Inc()
	if status == "completed" {
		transactionAmount.WithLabelValues(txType).Add(float64(amount))
	}
}

func RecordRefund(txType string) {
	refundsTotal.WithLabelValues(txType).Inc()
}

func RecordProviderCall(provider, operation string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	providerRequestDuration.WithLabelValues(provider, operation, outcome).Observe(d.Seconds())
}

func RecordKafkaMessageProduced(topic string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	kafkaMessagesProduced.WithLabelValues(topic, outcome).Inc()
}
