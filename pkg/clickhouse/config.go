package clickhouse

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig is turned into a clickhouse:// DSN by buildDSN.
type ClientConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	MaxExecTime  time.Duration
	UseHTTP      bool
	AsyncInsert  bool
	WaitForAsync bool
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
	}
}

// WithServer sets the address and selects the HTTP interface instead of
// the native protocol when useHTTP is set.
func WithServer(host string, port int, useHTTP bool) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		c.Port = port
		c.UseHTTP = useHTTP
	}
}

func WithDatabase(database, user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.Database = database
		c.User = user
		c.Password = password
	}
}

func WithPool(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

// WithTimeouts sets the dial and read timeouts and the server-side
// max_execution_time for every query.
func WithTimeouts(dial, read, maxExec time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.DialTimeout = dial
		c.ReadTimeout = read
		c.MaxExecTime = maxExec
	}
}

// WithAsyncInsert lets the server buffer small inserts. With wait set the
// insert returns only after the buffer is flushed.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert = enabled
		c.WaitForAsync = wait
	}
}
