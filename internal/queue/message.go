package queue

import (
	"fmt"
	"strings"
)

// DeliveryMessage is the broker payload for one recipient delivery. The job
// key is the delivery record id; workers address the record directly instead
// of looking it up by recipient.
type DeliveryMessage struct {
	DeliveryID    string `json:"deliveryId"`
	BatchID       string `json:"batchId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m DeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("deliveryId is required")
	}
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	return nil
}
