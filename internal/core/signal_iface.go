package core

// Frame is a raw payload pushed to a live subscriber.
type Frame []byte

// SignalConnection abstracts a push transport to one client.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
