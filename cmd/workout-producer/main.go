package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/liftoff-ranking/internal/domain"
)

// pickEventType favours newly logged workouts over edits and deletions
func pickEventType() string {
	switch n := rand.Intn(100); {
	case n < 85:
		return domain.WorkoutEventLogged
	case n < 97:
		return domain.WorkoutEventUpdated
	default:
		return domain.WorkoutEventDeleted
	}
}

// pickUser returns a user id in [1, totalUsers]. A fifth of the users are
// regulars who produce most of the traffic.
func pickUser(totalUsers int) int64 {
	regulars := max(totalUsers/5, 1)
	if rand.Intn(100) < 70 {
		return int64(rand.Intn(regulars) + 1)
	}
	return int64(rand.Intn(totalUsers) + 1)
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "workout-events", "Kafka topic")
	totalUsers := flag.Int("users", 1000, "Number of user ids to generate events for (1..N)")
	eventsPerSecond := flag.Int("rate", 50, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	if *totalUsers < 1 || *eventsPerSecond < 1 {
		log.Fatal("users and rate must be positive")
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Workout event producer")
	fmt.Printf("  Brokers:     %s\n", *brokers)
	fmt.Printf("  Topic:       %s\n", *topic)
	fmt.Printf("  Users:       %d\n", *totalUsers)
	fmt.Printf("  Events/sec:  %d\n", *eventsPerSecond)
	fmt.Println()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount, sentCount atomic.Int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			successCount.Add(1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			errorCount.Add(1)
			log.Printf("Producer error: %v", err)
		}
	}()

	shutdown := func(reason string) {
		fmt.Printf("\n%s, shutting down...\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Sent: %d, Acked: %d, Errors: %d\n",
			sentCount.Load(), successCount.Load(), errorCount.Load())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*eventsPerSecond))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var workoutSeq int64
	for {
		select {
		case <-sigChan:
			shutdown("Interrupted")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached")
				return
			}

			workoutSeq++
			event := domain.WorkoutEvent{
				UserID:    pickUser(*totalUsers),
				WorkoutID: workoutSeq,
				EventType: pickEventType(),
				Timestamp: time.Now().UTC(),
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Failed to marshal event: %v", err)
				continue
			}

			// Keyed by user so one user's events stay ordered on a partition
			producer.Input() <- &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(strconv.FormatInt(event.UserID, 10)),
				Value: sarama.ByteEncoder(data),
			}
			sentCount.Add(1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Acked: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				sentCount.Load(),
				successCount.Load(),
				errorCount.Load(),
			)
		}
	}
}
