package kafka

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"accord/backend/go/internal/config"

	"github.com/segmentio/kafka-go"
)

// Client holds the singleton Kafka writer and the admin connection.
type Client struct {
	Writer *kafka.Writer
	Conn   *kafka.Conn // admin connection, used for topic management
	Config *config.KafkaConfig
}

var (
	client  *Client
	once    sync.Once
	initErr error
)

// GetClient initializes and returns the singleton Kafka client. On first use
// it connects to the cluster and creates any configured topic that does not
// exist yet.
func GetClient(cfg *config.KafkaConfig) (*Client, error) {
	once.Do(func() {
		if len(cfg.Brokers) == 0 {
			initErr = fmt.Errorf("no Kafka brokers configured")
			return
		}
		if len(cfg.Topics) == 0 {
			initErr = fmt.Errorf("no Kafka topics configured")
			return
		}

		// 1. Open the admin connection.
		conn, err := kafka.Dial("tcp", cfg.Brokers[0])
		if err != nil {
			initErr = fmt.Errorf("failed to dial Kafka: %w", err)
			return
		}

		// 2. Collect the topics that already exist.
		partitions, err := conn.ReadPartitions()
		if err != nil {
			initErr = fmt.Errorf("failed to read Kafka partitions: %w", err)
			conn.Close()
			return
		}
		existingTopics := make(map[string]struct{})
		for _, p := range partitions {
			existingTopics[p.Topic] = struct{}{}
		}

		// 3. Create the configured topics that are missing.
		var topicsToCreate []kafka.TopicConfig
		for _, topicName := range cfg.Topics {
			if _, exists := existingTopics[topicName]; !exists {
				log.Printf("Kafka topic '%s' does not exist, creating it", topicName)
				topicsToCreate = append(topicsToCreate, kafka.TopicConfig{
					Topic:             topicName,
					NumPartitions:     1,
					ReplicationFactor: 1,
				})
			}
		}

		if len(topicsToCreate) > 0 {
			if err = conn.CreateTopics(topicsToCreate...); err != nil {
				initErr = fmt.Errorf("failed to create Kafka topics: %w", err)
				conn.Close()
				return
			}
			log.Printf("Created %d Kafka topics", len(topicsToCreate))
		}

		// 4. Create the shared writer.
		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		}

		log.Println("Connected to Kafka")
		client = &Client{Writer: writer, Conn: conn, Config: cfg}
	})

	return client, initErr
}

// Close shuts down the singleton Kafka connections.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Writer != nil {
		if err := c.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka writer: %w", err))
		}
	}
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka admin connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors while closing Kafka client: %v", errs)
	}
	return nil
}

// HealthCheck verifies the cluster is reachable by asking for the controller.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("Kafka client is not initialized")
	}
	_, err := c.Conn.Controller()
	return err
}

// ControllerAddr returns the address of the Kafka controller broker.
func (c *Client) ControllerAddr() (string, error) {
	if c == nil || c.Conn == nil {
		return "", fmt.Errorf("Kafka client is not initialized")
	}
	controller, err := c.Conn.Controller()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)), nil
}
