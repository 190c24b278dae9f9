package app

import (
	"checkoutservice/internal/cart"
	"checkoutservice/internal/httpapi"
	"checkoutservice/internal/inventory"
	"checkoutservice/internal/order"
	"checkoutservice/internal/platform/postgres"
	"checkoutservice/internal/pricing"
	"checkoutservice/internal/shipment"
	pgstore "checkoutservice/internal/storage/postgres"
)

// Services groups the business services built on top of the container.
type Services struct {
	Carts    *cart.Service
	Orders   *order.Coordinator
	HTTP     *httpapi.Handler
	Shipment shipment.ConsumerService
}

// ServiceFactory creates business logic services with their dependencies
type ServiceFactory struct {
	infra *Container
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(infra *Container) *ServiceFactory {
	return &ServiceFactory{
		infra: infra,
	}
}

// Build wires the Postgres adapters into the checkout services.
func (f *ServiceFactory) Build() *Services {
	db := f.infra.DB()
	catalog := pgstore.NewCatalogRepo(db)
	users := pgstore.NewUserDirectory(db)
	ledger := f.CreateLedger()
	tx := postgres.NewTransactor(db)

	carts := cart.NewService(pgstore.NewCartRepo(db), ledger, catalog, users, tx, f.infra.Logger(), f.infra.Tracer())

	cfg := f.infra.Config()
	orders := order.NewCoordinator(order.Dependencies{
		Orders: pgstore.NewOrderRepo(db),
		Ledger: ledger,
		Prices: pricing.NewSnapshotter(catalog),
		Users:  users,
		Carts:  carts,
		Tx:     tx,
		Events: order.NewKafkaPublisher(f.infra.MessageProducer(), f.infra.Logger()),
		Logger: f.infra.Logger(),
		Tracer: f.infra.Tracer(),
	},
		order.WithOperationTimeout(cfg.OperationTimeout),
		order.WithPageSizes(cfg.DefaultPageSize, cfg.MaxPageSize),
	)

	return &Services{
		Carts:    carts,
		Orders:   orders,
		HTTP:     httpapi.NewHandler(carts, orders, f.infra.Idempotency(), f.infra.Logger()),
		Shipment: f.CreateShipmentConsumer(orders),
	}
}

// CreateLedger creates the stock ledger with a span around every call.
func (f *ServiceFactory) CreateLedger() inventory.Ledger {
	return inventory.NewTracedLedger(pgstore.NewLedger(f.infra.DB()), f.infra.Logger(), f.infra.Tracer())
}

// CreateShipmentConsumer creates the consumer that applies carrier status updates.
func (f *ServiceFactory) CreateShipmentConsumer(updater shipment.StatusUpdater) shipment.ConsumerService {
	handler := shipment.NewMessageHandler(updater, f.infra.Logger(), f.infra.Tracer())
	return shipment.NewConsumerService(f.infra.MessageConsumer(), handler, f.infra.Logger())
}
