package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/messaging"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/messaging/events"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
)

// skipIntegrationTests is the environment variable that controls whether to skip integration tests.
const skipIntegrationTests = "STOREFRONT_SKIP_INTEGRATION_TESTS"
const natsImg = "nats:2.11.6-alpine"

// PublisherSuite runs the JetStream publisher against a real NATS server.
type PublisherSuite struct {
	suite.Suite
	ctx           context.Context
	logger        *slog.Logger
	natsContainer *nats.NATSContainer
	nc            *natsgo.Conn
	js            jetstream.JetStream
}

func (s *PublisherSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.natsContainer, err = nats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)

	s.nc, err = NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err, "Failed to connect to NATS")

	s.js, err = NewJetStreamContext(s.nc)
	require.NoError(s.T(), err, "Failed to get JetStream context")
	s.logger.Info("Initialization complete for PublisherSuite")
}

func (s *PublisherSuite) TearDownSuite() {
	if s.nc != nil {
		s.nc.Close()
	}
	if err := testcontainers.TerminateContainer(s.natsContainer); err != nil {
		s.logger.Error("Failed to terminate NATS container", "error", err)
	}
}

func TestPublisherIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) TestPublish_DeliversAndDeduplicates() {
	// given
	stream := "CART_" + uuid.NewString()[:8]
	prefix := "cart.events." + uuid.NewString()[:8]
	require.NoError(s.T(), EnsureStream(s.ctx, s.js, stream, prefix))
	publisher := NewNatsPublisher(s.js, prefix)

	event := events.CartEvent{
		EventID:    uuid.New(),
		Kind:       messaging.CartItemAddedSubject,
		Cart:       "cart:" + uuid.NewString(),
		ProductID:  "rose-hamper",
		Quantity:   2,
		TotalItems: 2,
		TotalPrice: 4000,
		OccurredAt: time.Now().UTC(),
	}

	// when
	require.NoError(s.T(), publisher.Publish(s.ctx, event))
	require.NoError(s.T(), publisher.Publish(s.ctx, event), "Duplicate publish should be accepted and dropped")

	// then
	st, err := s.js.Stream(s.ctx, stream)
	require.NoError(s.T(), err)
	info, err := st.Info(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), uint64(1), info.State.Msgs, "Message ID should deduplicate the second publish")

	msg, err := st.GetLastMsgForSubject(s.ctx, prefix+"."+messaging.CartItemAddedSubject)
	require.NoError(s.T(), err)
	var received events.CartEvent
	require.NoError(s.T(), json.Unmarshal(msg.Data, &received))
	require.Equal(s.T(), event.EventID, received.EventID)
	require.Equal(s.T(), event.TotalPrice, received.TotalPrice)
}
