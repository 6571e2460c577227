//go:build integration

package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carecheck/internal/platform/kafka/admin"
	"carecheck/internal/platform/kafka/consumer"
	"carecheck/internal/platform/kafka/producer"
	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	"carecheck/pkg/testutil/containers"
)

type KafkaBusSuite struct {
	suite.Suite
	kafka  *containers.KafkaContainer
	logger *slog.Logger
}

func TestKafkaBusSuite(t *testing.T) {
	suite.Run(t, new(KafkaBusSuite))
}

func (s *KafkaBusSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureHandler struct {
	got chan PhaseCompleted
}

func (h *captureHandler) HandlePhaseCompleted(_ context.Context, e PhaseCompleted) error {
	h.got <- e
	return nil
}

func (s *KafkaBusSuite) TestPublishedEventReachesDispatcher() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	topic := "phase-completed-" + uuid.NewString()[:8]
	s.Require().NoError(admin.EnsureTopics(ctx, s.kafka.Brokers, admin.TopicSpec{Name: topic, Partitions: 1, ReplicationFactor: 1}))
	s.Require().NoError(admin.EnsureTopics(ctx, s.kafka.Brokers, admin.TopicSpec{Name: topic, Partitions: 1, ReplicationFactor: 1}),
		"creating an existing topic is not an error")

	p, err := producer.New(s.kafka.Brokers, s.logger)
	s.Require().NoError(err)
	defer p.Close()

	handler := &captureHandler{got: make(chan PhaseCompleted, 1)}
	c, err := consumer.New(s.kafka.Brokers, "test-"+topic, []string{topic}, NewKafkaHandler(handler, s.logger), s.logger)
	s.Require().NoError(err)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = c.Run(runCtx) }()

	sent := PhaseCompleted{
		VerificationID: id.NewVerificationID(),
		CandidateID:    id.CandidateID(uuid.New()),
		Completed:      models.PhaseWWCC,
		Next:           models.PhaseCrossCheck,
		Generation:     2,
		OccurredAt:     time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	s.Require().NoError(NewKafkaPublisher(p, topic).Publish(ctx, sent))

	select {
	case got := <-handler.got:
		s.Equal(sent.VerificationID, got.VerificationID)
		s.Equal(models.PhaseCrossCheck, got.Next)
		s.Equal(int64(2), got.Generation)
		s.True(sent.OccurredAt.Equal(got.OccurredAt))
	case <-ctx.Done():
		s.Fail("event was not consumed")
	}
}
