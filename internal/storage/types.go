package storage

// Item is one catalog entry. IDs are unique positive integers and stock
// never goes negative.
type Item struct {
	ID    int     `json:"id" db:"id"`
	Name  string  `json:"name" db:"name"`
	Price float64 `json:"price" db:"price"`
	Stock int     `json:"stock" db:"stock"`
}

// ItemUpdate carries an upsert request. A nil ID means "allocate the next
// free one"; a non-nil ID must reference an existing item.
type ItemUpdate struct {
	ID    *int
	Name  string
	Price float64
	Stock int
}

// OrderLine is one requested line of an order.
type OrderLine struct {
	ItemID   int `json:"id"`
	Quantity int `json:"quantity"`
}

// FulfilledLine records a line that was decremented from stock.
type FulfilledLine struct {
	ItemID    int
	Name      string
	Quantity  int
	UnitPrice float64
	Subtotal  float64
}

// RejectedLine records a line that could not be fulfilled. Reason
// distinguishes an unknown item from insufficient stock and is shown to
// the buyer verbatim.
type RejectedLine struct {
	ItemID int
	Reason string
}

// OrderResult is what ApplyOrder reports back. Total is the sum of the
// fulfilled subtotals.
type OrderResult struct {
	Fulfilled []FulfilledLine
	Rejected  []RejectedLine
	Total     float64
}

// storeData is the wholesale layout of the persisted JSON file.
type storeData struct {
	Items        []Item   `json:"items"`
	BannedEmails []string `json:"bannedEmails"`
}

// defaultCatalog seeds an empty store on first run.
func defaultCatalog() []Item {
	return []Item{
		{ID: 1, Name: "Band-Aid", Price: 4.99, Stock: 20},
		{ID: 2, Name: "Heating Pad", Price: 35, Stock: 3},
		{ID: 3, Name: "Thermometer", Price: 12.5, Stock: 10},
		{ID: 4, Name: "Gauze Roll", Price: 3.25, Stock: 40},
	}
}
