package redis

import (
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Options holds the Redis connection settings.
type Options struct {
	// Redis server(cluster) address.
	Address string `json:"address"`
	// Password required when connecting to the Redis server.
	Password string `json:"password,omitempty"`
	// DB to connect to.
	DB int `json:"db"`
	// TLS config.
	TLSConfig *tls.Config `json:"-"`
}

// Connection contains Redis client connection object and the Options used to connect.
type Connection struct {
	Client  *redis.Client
	Options Options
}

// DefaultOptions.
func DefaultOptions() Options {
	return Options{
		Address:  "localhost:6379",
		Password: "", // no password set
		DB:       0,  // use default DB
	}
}

var connection *Connection
var mux sync.Mutex

// Returns true if connection instance is valid.
func IsConnectionInstantiated() bool {
	mux.Lock()
	defer mux.Unlock()
	return connection != nil
}

// Creates a singleton connection and returns it for every call with the same options.
// Asking for a different server while the singleton is open is an error, use NewConnection
// to talk to several servers.
func OpenConnection(options Options) (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()

	if connection != nil {
		if connection.Options != options {
			return nil, fmt.Errorf("redis connection to %s is already open, can't open %s", connection.Options.Address, options.Address)
		}
		return connection, nil
	}

	connection = openConnection(options)
	return connection, nil
}

// NewConnection returns a connection owned by the caller, independent of the singleton.
func NewConnection(options Options) *Connection {
	return openConnection(options)
}

// Close closes a connection returned by NewConnection.
func (c *Connection) Close() error {
	return closeConnection(c)
}

// Close the singleton connection if open.
func CloseConnection() error {
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return nil
	}
	err := closeConnection(connection)
	connection = nil
	return err
}

func openConnection(options Options) *Connection {
	client := redis.NewClient(&redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB})

	c := Connection{
		Client:  client,
		Options: options,
	}
	return &c
}

func closeConnection(c *Connection) error {
	if c == nil || c.Client == nil {
		return nil
	}
	err := c.Client.Close()
	c.Client = nil
	return err
}
