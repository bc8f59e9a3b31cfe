package redisx

import "time"

const (
	// Cache daftar produk per tenant: products:{tenant_id} -> JSON []Product
	KeyProducts = "products:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLProducts = 5 * time.Minute
	TTLDedup    = 48 * time.Hour
)
