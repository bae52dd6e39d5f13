// Package models contains the GORM persistence models behind the
// repositories. Domain entities carry no ORM tags; each model converts to and
// from its entity with ToDomain and FromDomain.
//
// Tables:
//   - drugs: catalog rows read by the core
//   - batches: lots with quantity on hand, expiry and derived status
//   - sales, sale_line_items, sale_allocations: immutable sale records
//   - forecasts: append-only demand forecasts
package models
