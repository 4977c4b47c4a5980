package shared

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

type KafkaConfig struct {
	Brokers   []string
	Protocol  string
	Mechanism string
	Username  string
	Password  string
}

func (k KafkaConfig) usesSASL() bool {
	return strings.HasPrefix(strings.ToUpper(k.Protocol), "SASL_")
}

func (k KafkaConfig) usesTLS() bool {
	p := strings.ToUpper(k.Protocol)
	return p == "SSL" || p == "SASL_SSL"
}

func (k KafkaConfig) saslMechanism() (sasl.Mechanism, error) {
	if !k.usesSASL() {
		return nil, nil
	}

	switch strings.ToUpper(k.Mechanism) {
	case "", "PLAIN":
		return plain.Mechanism{Username: k.Username, Password: k.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, k.Username, k.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, k.Username, k.Password)
	default:
		return nil, fmt.Errorf("unsupported sasl mechanism: %s", k.Mechanism)
	}
}

func (k KafkaConfig) tlsConfig() *tls.Config {
	if !k.usesTLS() {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func NewKafkaConsumer(cfg KafkaConfig, groupId string, topic string) (*kafka.Reader, error) {
	mechanism, err := cfg.saslMechanism()
	if err != nil {
		return nil, err
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: groupId,
		Topic:   topic,
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			TLS:           cfg.tlsConfig(),
			SASLMechanism: mechanism,
		},
		// offsets are committed explicitly once a message has been applied
		CommitInterval: 0,
	}), nil
}

func NewProducer(cfg KafkaConfig, topic string) (*kafka.Writer, error) {
	mechanism, err := cfg.saslMechanism()
	if err != nil {
		return nil, err
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    10,
		BatchTimeout: time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Transport: &kafka.Transport{
			TLS:  cfg.tlsConfig(),
			SASL: mechanism,
		},
	}, nil
}

// SplitBrokers turns a comma separated bootstrap list into broker addresses.
func SplitBrokers(bootstrap string) []string {
	var brokers []string
	for _, b := range strings.Split(bootstrap, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
