package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/liftoff-ranking/internal/config"
	"github.com/liftoff-ranking/internal/domain"
	"github.com/liftoff-ranking/internal/service"
)

const batchProcessTimeout = 30 * time.Second

var errInvalidEvent = errors.New("invalid workout event")

// Recalculator recalculates rankings for users whose history changed
type Recalculator interface {
	RecalculateUsers(ctx context.Context, userIDs []int64) (service.RecalcSummary, error)
}

// Consumer consumes workout events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	recalc        Recalculator
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, recalc Recalculator, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		recalc:        recalc,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	// Each session gets its own ready channel; Start only waits on the first
	ready := make(chan bool)
	firstReady := ready

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			ready = make(chan bool)
		}
	}()

	<-firstReady
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim collects events from a partition and recalculates the
// affected users once per batch. Offsets are marked only after the batch
// holding them was processed, so a crash replays the batch.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := newEventBatch(h.consumer.recalc, h.consumer.logger, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	// Last message read from the claim and not yet marked
	var pending *sarama.ConsumerMessage
	commit := func() {
		if err := batch.flush(); err != nil {
			return
		}
		if pending != nil {
			session.MarkMessage(pending, "")
			pending = nil
		}
	}

	for {
		select {
		case <-session.Context().Done():
			commit()
			return nil

		case <-batchTimer.C:
			commit()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				commit()
				return nil
			}
			pending = message

			event, err := decodeEvent(message.Value)
			if err != nil {
				h.consumer.logger.Warn("skipping workout event",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				continue
			}

			if batch.add(event) {
				commit()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// decodeEvent parses and validates one message value
func decodeEvent(value []byte) (domain.WorkoutEvent, error) {
	var event domain.WorkoutEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return event, fmt.Errorf("unmarshaling workout event: %w", err)
	}
	if event.UserID <= 0 {
		return event, fmt.Errorf("%w: missing user_id", errInvalidEvent)
	}
	switch event.EventType {
	case domain.WorkoutEventLogged, domain.WorkoutEventUpdated, domain.WorkoutEventDeleted:
	default:
		return event, fmt.Errorf("%w: unknown event_type %q", errInvalidEvent, event.EventType)
	}
	return event, nil
}

// eventBatch de-duplicates users across a batch of events. A user who logged
// several workouts is recalculated once.
type eventBatch struct {
	recalc Recalculator
	logger *slog.Logger
	size   int
	events int
	users  []int64
	seen   map[int64]struct{}
}

func newEventBatch(recalc Recalculator, logger *slog.Logger, size int) *eventBatch {
	return &eventBatch{
		recalc: recalc,
		logger: logger,
		size:   max(size, 1),
		seen:   make(map[int64]struct{}),
	}
}

// add records an event and reports whether the batch is full
func (b *eventBatch) add(event domain.WorkoutEvent) bool {
	b.events++
	if _, ok := b.seen[event.UserID]; !ok {
		b.seen[event.UserID] = struct{}{}
		b.users = append(b.users, event.UserID)
	}
	return b.events >= b.size
}

// flush recalculates the collected users and resets the batch. On error the
// batch is kept so the next flush retries it.
func (b *eventBatch) flush() error {
	if len(b.users) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchProcessTimeout)
	defer cancel()

	summary, err := b.recalc.RecalculateUsers(ctx, b.users)
	if err != nil {
		b.logger.Error("failed to process batch", "error", err, "events", b.events, "users", len(b.users))
		return fmt.Errorf("processing batch: %w", err)
	}
	b.logger.Debug("processed batch",
		"events", b.events,
		"users", len(b.users),
		"failed", summary.Failed,
	)

	b.events = 0
	b.users = nil
	clear(b.seen)
	return nil
}
