package cassandra

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
)

// Config contains configuration for connecting to a Cassandra cluster and the tile keyspace.
type Config struct {
	// ClusterHosts lists contact points for the Cassandra cluster.
	ClusterHosts []string `json:"cluster_hosts"`
	// Keyspace is the keyspace holding the blobs table.
	Keyspace string `json:"keyspace"`
	// Consistency is the default consistency level for queries.
	Consistency gocql.Consistency `json:"-"`
	// ConnectionTimeout is the session connection timeout.
	ConnectionTimeout time.Duration `json:"connection_timeout,omitempty"`
	// Username and Password enable password authentication when set.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// Authenticator is used when the cluster requires another kind of authentication.
	Authenticator gocql.Authenticator `json:"-"`
	// ReplicationClause defines the keyspace replication (e.g., SimpleStrategy).
	ReplicationClause string `json:"replication_clause,omitempty"`

	// ConsistencyBook allows overriding per-API consistency levels.
	ConsistencyBook ConsistencyBook `json:"-"`
}

// ConsistencyBook enumerates per-API consistency levels used by this package.
type ConsistencyBook struct {
	BlobStoreAdd    gocql.Consistency
	BlobStoreGet    gocql.Consistency
	BlobStoreRemove gocql.Consistency
}

// Connection wraps a Cassandra session and its configuration.
type Connection struct {
	Session *gocql.Session
	Config
}

var connection *Connection
var mux sync.Mutex

// IsConnectionInstantiated reports whether a global Connection has been created.
func IsConnectionInstantiated() bool {
	mux.Lock()
	defer mux.Unlock()
	return connection != nil
}

func (config Config) withDefaults() Config {
	if config.Keyspace == "" {
		// default keyspace
		config.Keyspace = "coverage"
	}
	if config.Consistency == gocql.Any {
		// Defaults to LocalQuorum consistency. You should set it to an appropriate level.
		config.Consistency = gocql.LocalQuorum
	}
	if config.ReplicationClause == "" {
		// Specify an appropriate replication feature.
		config.ReplicationClause = "{'class':'SimpleStrategy', 'replication_factor':1}"
	}
	if config.Authenticator == nil && config.Username != "" {
		config.Authenticator = gocql.PasswordAuthenticator{Username: config.Username, Password: config.Password}
	}
	return config
}

func createKeyspaceStatement(config Config) string {
	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = %s;", config.Keyspace, config.ReplicationClause)
}

func createBlobsTableStatement(keyspace string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.blobs (blob_table text, id UUID, data blob, PRIMARY KEY((blob_table, id)));", keyspace)
}

// OpenConnection returns the existing global Connection or opens a new one using the provided config.
// The keyspace and the blobs table are created when missing.
func OpenConnection(config Config) (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()

	if connection != nil {
		return connection, nil
	}
	c, err := NewConnection(config)
	if err != nil {
		return nil, err
	}
	connection = c
	return connection, nil
}

// NewConnection opens a session owned by the caller, independent of the global Connection.
// The keyspace and the blobs table are created when missing.
func NewConnection(config Config) (*Connection, error) {
	config = config.withDefaults()
	cluster := gocql.NewCluster(config.ClusterHosts...)
	cluster.Consistency = config.Consistency
	if config.ConnectionTimeout > 0 {
		cluster.ConnectTimeout = config.ConnectionTimeout
	}
	if config.Authenticator != nil {
		cluster.Authenticator = config.Authenticator
		// Clear the credentials, we don't need to keep them hanging around.
		config.Authenticator = nil
		config.Password = ""
	}
	s, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	if err := s.Query(createKeyspaceStatement(config)).Exec(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Query(createBlobsTableStatement(config.Keyspace)).Exec(); err != nil {
		s.Close()
		return nil, err
	}
	return &Connection{Session: s, Config: config}, nil
}

// Close closes the session of a connection returned by NewConnection.
func (c *Connection) Close() {
	if c != nil && c.Session != nil {
		c.Session.Close()
	}
}

// CloseConnection closes and clears the global connection, if it exists.
func CloseConnection() {
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return
	}
	connection.Session.Close()
	connection = nil
}

func currentConnection() (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return nil, fmt.Errorf("cassandra connection is closed; call OpenConnection(config) to open it")
	}
	return connection, nil
}
