// Package model holds the guideresto business entities.
//
// Entities are plain records: they know nothing about tables, keys or
// sessions. A zero ID means the entity has not been persisted yet. The
// restaurant sets held by City and RestaurantType, and the evaluation set of
// a Restaurant, are in-memory back-reference collections kept in step by the
// mapper layer.
package model
