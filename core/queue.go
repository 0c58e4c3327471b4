package core

import "context"

// Delivery job types understood by the outbound workers.
const (
	JobTypeWhatsapp = "whatsapp"
	JobTypeEmail    = "email"
	JobTypePush     = "push"
)

type (
	// DeliveryJob is one outbound message handed to the delivery workers.
	DeliveryJob struct {
		JobType        string `json:"job_type"`
		NotificationID string `json:"notification_id"`
		Recipient      string `json:"recipient"`
		Template       string `json:"template"`
		Payload        []byte `json:"payload,omitempty"`
	}

	// DeliveryQueue hands jobs to the outbound delivery workers. Enqueue is
	// fire-and-forget: callers log failures and move on, they never retry
	// inline nor fail the request that produced the job.
	DeliveryQueue interface {
		Enqueue(ctx context.Context, job DeliveryJob) error
	}
)
