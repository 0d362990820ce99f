package test

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoPort is the port used by the MongoDB test container.
const MongoPort = "27017"

// StartMongoContainer starts a MongoDB container for testing storage
// functionality. It returns the container and any error encountered during
// startup. Use Endpoint(ctx, "mongodb") on the container to get the
// connection string.
func StartMongoContainer(ctx context.Context) (testcontainers.Container, error) {
	mongoPort := fmt.Sprintf("%s/tcp", MongoPort)
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{mongoPort},
				WaitingFor:   wait.ForListeningPort(MongoPort),
			},
			Started: true,
		})
}

// RandomDatabaseName returns a unique database name so parallel test
// packages can share the same MongoDB container without clashing.
func RandomDatabaseName() string {
	return fmt.Sprintf("snip_test_%d_%d", time.Now().UnixNano(), rand.Intn(1000000))
}
