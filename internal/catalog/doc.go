// Package catalog decides, from a collection snapshot and a filter state,
// which items a view shows and in what order.
//
// Compute is pure: it never mutates its inputs and keeps no state between
// calls, so it is safe to call on every snapshot notification and every
// filter edit without coordination. The linear scan over the snapshot is the
// whole algorithm; it grows with catalog size.
package catalog
