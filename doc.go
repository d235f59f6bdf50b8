// Package hookflow is HTTP middleware for webhooks. Each strategy watches one
// path (by default /hooks/<name>), pulls an event payload and an event type
// out of matching requests and publishes the payload as "<name>.<type>" on a
// notification bus. Application code subscribes to event names and never
// touches the provider's wire format.
//
// Strategies are declared once with Define or MustDefine and mounted with
// Class.New or through a Builder, which resolves declared strategies by name
// and composes them with other middleware:
//
//	b := hookflow.NewBuilder()
//	if _, err := b.Provider("developer"); err != nil {
//		return err
//	}
//	http.ListenAndServe(":8080", b.Handler(app))
//
// Matching POST requests are answered with an empty 200, or an empty 500 when
// extraction or publishing fails. Requests for other paths or methods reach
// the next handler unchanged. Configure adjusts the process-wide path prefix,
// allowed methods and logger; LoadSettings reads the same values from YAML
// and HOOKFLOW_ environment variables.
//
// # Bus
//
// By default events stay in process on DefaultNotifier. NewBusFromSettings
// forwards them over a Watermill transport as well (Kafka, RabbitMQ, NATS,
// AWS SNS/SQS, HTTP or Go channels), and a Relay in another process feeds
// them back into its local notifier so subscribers there see the same names.
//
// # Observability
//
// DispatchHooks run around every dispatch; LoggingHooks and DispatchMetrics
// (Prometheus) are ready-made. Each handled request is traced as an
// OpenTelemetry span named hookflow.dispatch.
package hookflow
