package kafka

import "time"

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds writer settings. Messages are always balanced by
// key so events for one signal or subscriber stay ordered.
type ProducerConfig struct {
	Brokers          []string
	Compression      string
	RequiredAcks     int
	MaxAttempts      int
	Async            bool
	BatchSize        int
	BatchBytes       int
	BatchTimeout     time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	AutoCreateTopics bool
}

func defaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Compression:  "gzip",
		RequiredAcks: -1,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression accepts gzip, snappy, lz4 or zstd; anything else
// disables compression.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

// WithDelivery sets acknowledgements (-1 = all ISR), writer retries and
// whether writes are fire-and-forget.
func WithDelivery(acks, attempts int, async bool) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
		c.MaxAttempts = attempts
		c.Async = async
	}
}

// WithBatching flushes a batch at size messages, bytes total or after
// linger, whichever comes first.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.BatchSize = size
		c.BatchBytes = bytes
		c.BatchTimeout = linger
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAutoCreateTopics lets the writer create missing topics. Local
// compose setups only.
func WithAutoCreateTopics(enabled bool) ProducerOption {
	return func(c *ProducerConfig) { c.AutoCreateTopics = enabled }
}
