package pubsub

// StorageType defines the storage backend for streams.
type StorageType int

const (
	// MemoryStorage stores data in memory (default).
	MemoryStorage StorageType = iota
	// FileStorage stores data on disk.
	FileStorage
)

// ParseStorageType maps "file" to FileStorage and anything else to MemoryStorage.
func ParseStorageType(s string) StorageType {
	if s == "file" {
		return FileStorage
	}
	return MemoryStorage
}

// PublisherOptions configures a publisher.
type PublisherOptions struct {
	// StreamName is the stream holding the change subjects.
	StreamName string

	// SubjectPrefix is the part of every change subject before the collection.
	SubjectPrefix string

	// RetryAttempts is the number of publish retries. 0 means none.
	RetryAttempts int

	Storage StorageType
}

// ConsumerOptions configures a consumer.
type ConsumerOptions struct {
	StreamName string

	// ConsumerName names the consumer. Each process needs its own name;
	// empty picks a unique one.
	ConsumerName string

	// SubjectPrefix must match the publishers' prefix.
	SubjectPrefix string

	// Collections restricts the consumer to these collections. Empty
	// follows every collection under SubjectPrefix.
	Collections []string

	// ChannelBufSize is the buffer size of the notification channel.
	ChannelBufSize int

	Storage StorageType
}

// DefaultConsumerOptions returns ConsumerOptions with sensible defaults.
func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		ChannelBufSize: 100,
	}
}
