package port

// IDSupplier returns an id that was never returned before in this process.
type IDSupplier func() string
