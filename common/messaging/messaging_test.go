package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubClient struct {
	NoopPublisher
	connected bool
}

func (s stubClient) Drain() error      { return nil }
func (s stubClient) IsConnected() bool { return s.connected }

func TestDLQSubject(t *testing.T) {
	assert.Equal(t, "ingest.dlq.storage_failure", DLQSubject("storage_failure"))
}

func TestCheckClientHealth(t *testing.T) {
	assert.Equal(t, HealthStatus{}, CheckClientHealth(nil))

	up := CheckClientHealth(stubClient{connected: true})
	assert.True(t, up.Enabled)
	assert.True(t, up.Connected)
	assert.Empty(t, up.Error)

	down := CheckClientHealth(stubClient{connected: false})
	assert.True(t, down.Enabled)
	assert.False(t, down.Connected)
	assert.NotEmpty(t, down.Error)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), SubjectRecordsInserted, []byte("{}")))
	assert.NoError(t, p.PublishMsg(context.Background(), &Message{Subject: SubjectRecordsUpdated}))
	assert.NoError(t, p.Close())
}
