package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ActasCreated          prometheus.Counter
	ActasSubmitted        prometheus.Counter
	ActasApproved         prometheus.Counter
	ActasSent             prometheus.Counter
	ParticipantApprovals  prometheus.Counter
	ParticipantRejections prometheus.Counter
	AttachmentsUploaded   prometheus.Counter
	NotificationFailures  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ActasCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recaudo_actas_created_total",
			Help: "Total number of actas created",
		}),
		ActasSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recaudo_actas_submitted_total",
			Help: "Total number of actas submitted for approval",
		}),
		ActasApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recaudo_actas_approved_total",
			Help: "Total number of actas that reached the approved state",
		}),
		ActasSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recaudo_actas_sent_total",
			Help: "Total number of actas marked as sent",
		}),
		ParticipantApprovals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recaudo_participant_approvals_total",
			Help: "Total number of participant approvals received",
		}),
		ParticipantRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recaudo_participant_rejections_total",
			Help: "Total number of participant rejections received",
		}),
		AttachmentsUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recaudo_attachments_uploaded_total",
			Help: "Total number of attachments stored",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recaudo_notification_failures_total",
			Help: "Total number of failed participant notifications",
		}),
	}
}
