package cassandra

import (
	"context"
	"fmt"
	"regexp"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/types"
	"github.com/chrissnell/meteodb/pkg/config"
)

var keyspaceName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

func createKeyspaceCQL(keyspace string, replicationFactor int) string {
	return fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
		keyspace, replicationFactor)
}

// CreateKeyspace creates the configured keyspace with SimpleStrategy
// replication if it does not exist.
func CreateKeyspace(ctx context.Context, c *config.CassandraData, replicationFactor int) error {
	if !keyspaceName.MatchString(c.Keyspace) {
		return fmt.Errorf("%w: invalid keyspace name %q", types.ErrMalformedInput, c.Keyspace)
	}
	if replicationFactor < 1 {
		return fmt.Errorf("%w: replication factor %d", types.ErrMalformedInput, replicationFactor)
	}

	cluster, err := newCluster(c)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrFatalSetup, err)
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("%w: connecting to cassandra: %v", types.ErrFatalSetup, err)
	}
	defer session.Close()

	log.Infof("creating keyspace %s (replication factor %d)...", c.Keyspace, replicationFactor)
	if err := session.Query(createKeyspaceCQL(c.Keyspace, replicationFactor)).WithContext(ctx).Exec(); err != nil {
		log.Warnf("warning: could not create keyspace %s: %v", c.Keyspace, err)
		return fmt.Errorf("%w: creating keyspace: %v", types.ErrFatalSetup, err)
	}
	return nil
}
