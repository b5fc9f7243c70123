package model

// FilterOp defines the supported filter operators.
type FilterOp string

const (
	OpEq       FilterOp = "=="       // Equal
	OpNe       FilterOp = "!="       // Not equal
	OpGt       FilterOp = ">"        // Greater than
	OpGte      FilterOp = ">="       // Greater than or equal
	OpLt       FilterOp = "<"        // Less than
	OpLte      FilterOp = "<="       // Less than or equal
	OpIn       FilterOp = "in"       // Value in array
	OpContains FilterOp = "contains" // Array contains value
)

// ValidOps returns all valid filter operators.
func ValidOps() []FilterOp {
	return []FilterOp{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains}
}

// IsValid checks if the operator is valid.
func (op FilterOp) IsValid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return true
	}
	return false
}

// Filters is a slice of Filter.
type Filters []Filter

// Filter restricts which raw documents of a collection belong to a view.
type Filter struct {
	Field string      `json:"field" yaml:"field"`
	Op    FilterOp    `json:"op" yaml:"op"`
	Value interface{} `json:"value" yaml:"value"`
}

// Validate checks if the filter is valid.
func (f Filter) Validate() bool {
	if f.Field == "" {
		return false
	}
	return f.Op.IsValid()
}

// Order is the store-native ordering hint passed when subscribing to a
// collection. The store may ignore it; the catalog never assumes it holds.
type Order struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction" yaml:"direction"` // "asc" or "desc"
}

// DefaultOrder is descending creation time.
func DefaultOrder() Order {
	return Order{Field: "createdAt", Direction: "desc"}
}

// IsDesc reports whether the order is descending.
func (o Order) IsDesc() bool {
	return o.Direction == "desc"
}
