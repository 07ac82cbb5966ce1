// Package events publica en Kafka los movimientos de stock ya confirmados.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var _ inventory.EventPublisher = (*KafkaPublisher)(nil)

// MovementEvent mensaje publicado por cada movimiento del libro.
type MovementEvent struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id"`
	WarehouseID     string    `json:"warehouse_id"`
	MovementType    string    `json:"movement_type"`
	ReferenceType   string    `json:"reference_type"`
	ReferenceID     string    `json:"reference_id,omitempty"`
	ReferenceNumber string    `json:"reference_number"`
	QuantityBefore  int64     `json:"quantity_before"`
	QuantityChange  int64     `json:"quantity_change"`
	QuantityAfter   int64     `json:"quantity_after"`
	UnitCost        string    `json:"unit_cost"`
	Notes           string    `json:"notes,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewMovementEvent proyecta un movimiento al formato del mensaje.
func NewMovementEvent(m *entity.StockMovement) MovementEvent {
	return MovementEvent{
		ID:              m.ID,
		ProductID:       m.ProductID,
		WarehouseID:     m.WarehouseID,
		MovementType:    m.MovementType,
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		ReferenceNumber: m.ReferenceNumber,
		QuantityBefore:  m.QuantityBefore,
		QuantityChange:  m.QuantityChange,
		QuantityAfter:   m.QuantityAfter,
		UnitCost:        m.UnitCost.String(),
		Notes:           m.Notes,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
	}
}

// MessageWriter lo que el publicador necesita de *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher un mensaje por movimiento, con clave product_id para conservar el orden por producto.
type KafkaPublisher struct {
	writer MessageWriter
	log    zerolog.Logger
}

// NewKafkaPublisher crea el writer sobre los brokers y el tópico dados.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return NewPublisherWithWriter(w, log)
}

// NewPublisherWithWriter permite inyectar el writer (tests).
func NewPublisherWithWriter(w MessageWriter, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log.With().Str("component", "kafka_publisher").Logger()}
}

// PublishMovements envía los movimientos de una operación en un solo WriteMessages.
func (p *KafkaPublisher) PublishMovements(ctx context.Context, movements []*entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(movements))
	for _, m := range movements {
		payload, err := json.Marshal(NewMovementEvent(m))
		if err != nil {
			return fmt.Errorf("serializar movimiento %s: %w", m.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(m.ProductID),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "reference_type", Value: []byte(m.ReferenceType)},
				{Key: "reference_number", Value: []byte(m.ReferenceNumber)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publicar movimientos: %w", err)
	}
	p.log.Debug().Str("reference", movements[0].ReferenceNumber).Int("messages", len(msgs)).Msg("movimientos publicados")
	return nil
}

// Close vacía y cierra el writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
