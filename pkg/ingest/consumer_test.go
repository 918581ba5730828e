package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/helixlabs/limsd/pkg/orders"
	"github.com/helixlabs/limsd/pkg/refrange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingResultStore struct{}

func (failingResultStore) GetOrder(ctx context.Context, id int64) (*orders.TestOrder, error) {
	return nil, errors.New("connection refused")
}

func (failingResultStore) CreateResults(ctx context.Context, results []orders.TestResult) error {
	return errors.New("connection refused")
}

func TestFeedCommitsPermanentFailures(t *testing.T) {
	svc := testService(newFakeLedger(), newFakeResultStore(1))
	feed := &Feed{service: svc}
	ctx := context.Background()

	// Unparseable payloads must not wedge the partition.
	assert.NoError(t, feed.handle(ctx, []byte("k"), []byte("not json")))

	// Validation failures are permanent: committed after dead-lettering.
	bad := testMessage("", 1)
	raw, err := json.Marshal(bad)
	require.NoError(t, err)
	assert.NoError(t, feed.handle(ctx, []byte("k"), raw))

	// Unknown orders are dead-lettered too.
	missing := testMessage("msg-1", 99)
	raw, err = json.Marshal(missing)
	require.NoError(t, err)
	assert.NoError(t, feed.handle(ctx, []byte("k"), raw))
}

func TestFeedRetriesTransientFailures(t *testing.T) {
	resolver := &fakeResolver{configs: map[string]refrange.Config{}}
	svc := NewService(NewValidator(nil), newFakeLedger(), failingResultStore{}, resolver, 0)
	feed := &Feed{service: svc}

	raw, err := json.Marshal(testMessage("msg-1", 1))
	require.NoError(t, err)

	// A persistence error surfaces so the offset stays uncommitted.
	assert.Error(t, feed.handle(context.Background(), []byte("k"), raw))
}

func TestFeedCommitsDuplicates(t *testing.T) {
	svc := testService(newFakeLedger(), newFakeResultStore(1))
	feed := &Feed{service: svc}
	ctx := context.Background()

	raw, err := json.Marshal(testMessage("msg-1", 1))
	require.NoError(t, err)

	assert.NoError(t, feed.handle(ctx, []byte("k"), raw))
	assert.NoError(t, feed.handle(ctx, []byte("k"), raw))
}
