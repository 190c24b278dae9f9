// Package shipment applies status updates reported by the fulfilment side.
package shipment

// StatusUpdatedEvent is the payload of a ShipmentUpdated message.
type StatusUpdatedEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
