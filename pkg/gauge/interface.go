package gauge

// Device is the controller-facing view of a pressure gauge (real or simulated).
type Device interface {
	ReadPressure() (Reading, error)
	CheckConnection() bool
	IsConnected() bool
	Close() error
}

// Ensure Gauge implements Device.
var _ Device = (*Gauge)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
