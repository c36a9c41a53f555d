package messaging

// Cart event subjects, relative to the configured prefix.
const (
	CartItemAddedSubject       = "item.added"
	CartItemRemovedSubject     = "item.removed"
	CartQuantityUpdatedSubject = "item.quantity_updated"
	CartClearedSubject         = "cleared"
	CartPersistFailedSubject   = "persist_failed"
)
