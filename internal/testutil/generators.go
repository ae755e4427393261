package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// TestDataGenerator produces deterministic test data from a seeded random
// source, so tests that compare transferred bytes are repeatable.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Payload generates n deterministic pseudo-random bytes.
func (g *TestDataGenerator) Payload(n int) []byte {
	data := make([]byte, n)
	g.rand.Read(data)
	return data
}

// Targets generates count replica targets with descending priority order
// (target-0 is tried first).
func (g *TestDataGenerator) Targets(count int) []replicatypes.Target {
	targets := make([]replicatypes.Target, count)
	for i := 0; i < count; i++ {
		targets[i] = replicatypes.Target{
			Name:            fmt.Sprintf("target-%d", i),
			Endpoint:        fmt.Sprintf("http://target-%d.localhost:9000", i),
			Region:          "us-east-1",
			Bucket:          fmt.Sprintf("replica-bucket-%d", i),
			AccessKeyID:     "test-access-key",
			SecretAccessKey: "test-secret-key",
			Priority:        i,
			PathStyle:       true,
		}
	}
	return targets
}

// Job generates a transfer job for the named object.
func (g *TestDataGenerator) Job(objectName, owner string, size int64) replicatypes.TransferJob {
	return replicatypes.TransferJob{
		ObjectName: objectName,
		SourcePath: "/uploads/" + objectName,
		Size:       size,
		Owner:      owner,
		CreatedAt:  time.Now(),
	}
}

// WriteSourceFile writes a deterministic payload of the given size to path
// on fsys and returns the payload for later comparison.
func (g *TestDataGenerator) WriteSourceFile(fsys fs.Filesystem, path string, size int) ([]byte, error) {
	data := g.Payload(size)
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return data, nil
}
