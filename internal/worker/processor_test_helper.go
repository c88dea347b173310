package worker

import (
	"context"
	"fmt"

	"github.com/brightreach/leadengine/internal/queue"
)

// ProcessJobForTest runs a single job through the processor's dispatch
// logic. Exposed for integration tests that drive the queue directly.
func (p *Processor) ProcessJobForTest(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeQualifyLead:
		return p.processQualifyLead(ctx, job)
	case queue.JobTypeSendFollowUp:
		return p.processSendFollowUp(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}
