// Command shipmentsim publishes a ShipmentUpdated message for one order,
// standing in for the carrier integration during local runs.
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"time"

	"checkoutservice/internal/config"
	"checkoutservice/internal/order"
	"checkoutservice/internal/platform/kafka"
	"checkoutservice/internal/platform/observability"
	"checkoutservice/internal/shipment"

	"go.opentelemetry.io/otel"
)

func main() {
	if err := run(); err != nil {
		stdlog.Fatalf("shipmentsim failed: %v", err)
	}
}

func run() error {
	broker := flag.String("broker", "localhost:9092", "Kafka bootstrap address")
	orderID := flag.String("order", "", "order id to update")
	status := flag.String("status", string(order.StatusShipped), "new order status")
	flag.Parse()

	if *orderID == "" {
		return fmt.Errorf("-order is required")
	}
	parsed, err := order.ParseStatus(*status)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(false)
	defer func() { _ = logger.Sync() }()

	producer, err := kafka.NewProducer(*broker, config.ShipmentUpdatedTopic, otel.GetTracerProvider())
	if err != nil {
		return err
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return shipment.NewReporter(producer, logger).Report(ctx, shipment.StatusUpdatedEvent{
		OrderID: *orderID,
		Status:  string(parsed),
	})
}
