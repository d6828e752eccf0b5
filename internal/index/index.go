package index

// CaptureIndex defines the interface for capture index operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type CaptureIndex interface {
	Upsert(row Row) error
	GetByID(id string) (*Row, error)
	GetByMonth(year, month int) ([]Row, error)
	UpdateFields(id string, patch FieldPatch) error
	Count() (int, error)
	LatestCapture() (*Row, error)
	Close() error
}

// Verify *DB satisfies CaptureIndex at compile time.
var _ CaptureIndex = (*DB)(nil)
