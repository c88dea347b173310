package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightreach/leadengine/internal/client"
	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/models"
	"github.com/brightreach/leadengine/internal/queue"
	"github.com/brightreach/leadengine/internal/repository"
	"github.com/brightreach/leadengine/internal/services"
)

// Notifier is the outbound delivery surface the processor depends on
type Notifier interface {
	SendLeadNotification(ctx context.Context, lead *models.EnhancedLead) (*client.DeliveryResponse, error)
	SendFollowUpEmail(ctx context.Context, email client.FollowUpEmail) (*client.DeliveryResponse, error)
}

// Processor handles background job processing for leads and sequences
type Processor struct {
	queue               queue.Queue
	leadRepo            repository.LeadRepository
	profileRepo         repository.ProfileRepository
	sequenceRepo        repository.SequenceRepository
	validator           *services.Validator
	qualifier           *services.Qualifier
	notifier            Notifier
	pollInterval        time.Duration
	shutdownChan        chan struct{}
	maxDeliveryAttempts int
	backoffDelays       []time.Duration
}

// ProcessorConfig holds configuration for the worker processor
type ProcessorConfig struct {
	Queue               queue.Queue
	LeadRepo            repository.LeadRepository
	ProfileRepo         repository.ProfileRepository
	SequenceRepo        repository.SequenceRepository
	Validator           *services.Validator
	Qualifier           *services.Qualifier
	Notifier            Notifier
	PollInterval        time.Duration
	MaxDeliveryAttempts int
	BackoffDelays       []time.Duration
}

// guardRecheckDelay is how long a suppressed follow-up email waits before
// the send conditions are evaluated again
const guardRecheckDelay = 24 * time.Hour

// NewProcessor creates a new worker processor
func NewProcessor(config ProcessorConfig) *Processor {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}

	if config.MaxDeliveryAttempts == 0 {
		config.MaxDeliveryAttempts = 5
	}

	if len(config.BackoffDelays) == 0 {
		config.BackoffDelays = []time.Duration{
			30 * time.Second,
			60 * time.Second,
			120 * time.Second,
			240 * time.Second,
			480 * time.Second,
		}
	}

	return &Processor{
		queue:               config.Queue,
		leadRepo:            config.LeadRepo,
		profileRepo:         config.ProfileRepo,
		sequenceRepo:        config.SequenceRepo,
		validator:           config.Validator,
		qualifier:           config.Qualifier,
		notifier:            config.Notifier,
		pollInterval:        config.PollInterval,
		shutdownChan:        make(chan struct{}),
		maxDeliveryAttempts: config.MaxDeliveryAttempts,
		backoffDelays:       config.BackoffDelays,
	}
}

// Start begins the worker polling loop with graceful shutdown
func (p *Processor) Start(ctx context.Context) error {
	logger.Info(ctx, "Starting worker processor", "poll_interval", p.pollInterval)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context cancelled, shutting down gracefully")
			return ctx.Err()

		case <-sigChan:
			logger.Info(ctx, "Received shutdown signal, shutting down gracefully")
			return nil

		case <-p.shutdownChan:
			logger.Info(ctx, "Shutdown requested, shutting down gracefully")
			return nil

		case <-ticker.C:
			if err := p.pollAndProcess(ctx); err != nil {
				logger.LogError(ctx, "Error polling and processing jobs", err)
				// Continue polling even if there's an error
			}
		}
	}
}

// Shutdown signals the worker to stop gracefully
func (p *Processor) Shutdown() {
	close(p.shutdownChan)
}

// pollAndProcess polls for a job and processes it. Retriable delivery
// failures are rescheduled with exponential backoff until the attempt
// budget runs out; everything else fails the job.
func (p *Processor) pollAndProcess(ctx context.Context) error {
	job, err := p.queue.Dequeue(ctx)
	if err != nil {
		return fmt.Errorf("failed to dequeue job: %w", err)
	}

	// No jobs available
	if job == nil {
		return nil
	}

	logger.Info(ctx, "Processing job", "job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)

	var processErr error
	switch job.Type {
	case queue.JobTypeQualifyLead:
		processErr = p.processQualifyLead(ctx, job)
	case queue.JobTypeSendFollowUp:
		processErr = p.processSendFollowUp(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		var deliveryErr *models.DeliveryError
		if errors.As(processErr, &deliveryErr) && deliveryErr.IsRetriable() && job.Attempts < p.maxDeliveryAttempts {
			delay := p.backoffDelay(job.Attempts)
			logger.Info(ctx, "Rescheduling job after retriable failure",
				"job_id", job.ID, "attempt", job.Attempts, "delay", delay)
			if err := p.queue.Retry(ctx, job.ID, delay); err != nil {
				logger.LogError(ctx, "Failed to reschedule job", err, "job_id", job.ID)
				return err
			}
			return nil
		}

		logger.LogError(ctx, "Job failed", processErr, "job_id", job.ID)
		if err := p.queue.Fail(ctx, job.ID, processErr.Error()); err != nil {
			logger.LogError(ctx, "Failed to mark job as failed", err, "job_id", job.ID)
		}
		return processErr
	}

	if err := p.queue.Complete(ctx, job.ID); err != nil {
		logger.LogError(ctx, "Failed to mark job as completed", err, "job_id", job.ID)
		return err
	}

	logger.Info(ctx, "Job completed successfully", "job_id", job.ID)
	return nil
}

// backoffDelay returns the delay before the given attempt is retried.
// Attempts beyond the table reuse the last delay.
func (p *Processor) backoffDelay(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.backoffDelays) {
		idx = len(p.backoffDelays) - 1
	}
	return p.backoffDelays[idx]
}

// processQualifyLead runs the full qualification pipeline for a stored
// lead: validate, score, merge profile, select sequence, notify.
func (p *Processor) processQualifyLead(ctx context.Context, job *queue.Job) error {
	startTime := time.Now()

	leadID, ok := queue.GetLeadID(job.Payload)
	if !ok {
		return fmt.Errorf("invalid job payload: missing lead_id")
	}

	ctx = context.WithValue(ctx, logger.LeadIDKey, leadID)

	logger.Info(ctx, "Processing lead")

	lead, err := p.leadRepo.GetLeadByID(ctx, leadID)
	if err != nil {
		logger.LogError(ctx, "Failed to load lead", err)
		return fmt.Errorf("failed to load lead %d: %w", leadID, err)
	}

	// Terminal leads are done. A QUALIFIED lead re-runs the pipeline so a
	// retried job can re-attempt the notification; every stage is idempotent.
	if lead.Status.IsTerminal() {
		logger.Info(ctx, "Lead already processed, skipping", "status", lead.Status)
		return nil
	}

	// Validation stage
	result := p.validator.ValidateLead(lead.RawPayload)
	if !result.Valid {
		msgs := result.Errors.Messages()
		logger.Info(ctx, "Lead validation failed", "errors", msgs)
		if err := p.leadRepo.UpdateLeadRejection(ctx, lead.ID, msgs); err != nil {
			return fmt.Errorf("failed to update lead rejection: %w", err)
		}
		logger.LogStatusTransition(ctx, lead.ID, string(lead.Status), string(models.LeadStatusRejected))
		lead.Status = models.LeadStatusRejected
		logger.LogSlowOperation(ctx, "qualify_lead", time.Since(startTime))
		return nil
	}

	validated := result.Lead
	logger.Info(ctx, "Lead validation passed", "email", validated.Email)

	// Load any prior state for this email
	profile, err := p.profileRepo.GetProfileByEmail(ctx, validated.Email)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	behavior, err := p.profileRepo.GetBehaviorProfileByEmail(ctx, validated.Email)
	if err != nil {
		return fmt.Errorf("failed to load behavior profile: %w", err)
	}

	// Qualification stage
	enhanced, merged := p.qualifier.Qualify(*validated, profile, behavior)

	logger.Info(ctx, "Lead qualified",
		"total_score", enhanced.Score.TotalScore,
		"qualification", enhanced.Score.Qualification,
		"priority", enhanced.Score.Priority,
		"sequence_type", enhanced.SequenceType)

	if err := p.leadRepo.UpdateLeadQualification(ctx, lead.ID, validated, enhanced.Score, enhanced.SequenceType); err != nil {
		return fmt.Errorf("failed to store qualification: %w", err)
	}
	logger.LogStatusTransition(ctx, lead.ID, string(lead.Status), string(models.LeadStatusQualified))
	lead.Status = models.LeadStatusQualified

	if err := p.profileRepo.UpsertProfile(ctx, merged); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}

	// Sequence stage: one active sequence per email
	sequence, err := p.ensureSequence(ctx, lead.ID, validated.Email, enhanced)
	if err != nil {
		return err
	}

	// Notification stage
	if _, err := p.notifier.SendLeadNotification(ctx, enhanced); err != nil {
		logger.LogError(ctx, "Failed to send lead notification", err)
		return err
	}

	if err := p.leadRepo.UpdateLeadStatus(ctx, lead.ID, models.LeadStatusNotified); err != nil {
		return fmt.Errorf("failed to update lead status to NOTIFIED: %w", err)
	}
	logger.LogStatusTransition(ctx, lead.ID, string(lead.Status), string(models.LeadStatusNotified))
	lead.Status = models.LeadStatusNotified

	// Schedule the first follow-up email
	if sequence != nil && sequence.NextEmailDate != nil {
		delay := time.Until(*sequence.NextEmailDate)
		if delay < 0 {
			delay = 0
		}
		payload := queue.NewSequenceJobPayload(sequence.ID, lead.ID)
		if err := p.queue.EnqueueWithDelay(ctx, queue.JobTypeSendFollowUp, payload, delay); err != nil {
			return fmt.Errorf("failed to enqueue follow-up job: %w", err)
		}
		logger.Info(ctx, "Scheduled first follow-up email",
			"sequence_id", sequence.ID, "next_email_date", sequence.NextEmailDate)
	}

	logger.Info(ctx, "Lead processed successfully", "final_status", lead.Status)
	logger.LogSlowOperation(ctx, "qualify_lead", time.Since(startTime))
	return nil
}

// ensureSequence returns the email's active sequence, creating one of the
// selected type when none exists.
func (p *Processor) ensureSequence(ctx context.Context, leadID int64, email string, enhanced *models.EnhancedLead) (*models.FollowUpSequence, error) {
	existing, err := p.sequenceRepo.GetActiveSequenceByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check active sequence: %w", err)
	}
	if existing != nil {
		logger.Info(ctx, "Active sequence already exists", "sequence_id", existing.ID)
		return existing, nil
	}

	sequencer := p.qualifier.Sequencer()
	sequence := sequencer.NewSequence(leadID, email, enhanced.SequenceType)

	// First email goes out after the first step's delay
	steps := sequencer.Steps(enhanced.SequenceType)
	if len(steps) > 0 {
		next := time.Now().Add(time.Duration(steps[0].DelayHours) * time.Hour)
		sequence.NextEmailDate = &next
	}

	if err := p.sequenceRepo.CreateSequence(ctx, sequence); err != nil {
		return nil, fmt.Errorf("failed to create sequence: %w", err)
	}

	logger.Info(ctx, "Created follow-up sequence",
		"sequence_id", sequence.ID, "sequence_type", sequence.SequenceType)
	return sequence, nil
}

// processSendFollowUp sends the next due email of a follow-up sequence
// and schedules the one after it.
func (p *Processor) processSendFollowUp(ctx context.Context, job *queue.Job) error {
	sequenceID, ok := queue.GetSequenceID(job.Payload)
	if !ok {
		return fmt.Errorf("invalid job payload: missing sequence_id")
	}

	ctx = context.WithValue(ctx, logger.SequenceIDKey, sequenceID)
	if leadID, ok := queue.GetLeadID(job.Payload); ok {
		ctx = context.WithValue(ctx, logger.LeadIDKey, leadID)
	}

	sequence, err := p.sequenceRepo.GetSequenceByID(ctx, sequenceID)
	if err != nil {
		return fmt.Errorf("failed to load sequence %s: %w", sequenceID, err)
	}

	// Engagement comes from the behavior profile; a lead with no recorded
	// activity counts as zero.
	engagementScore := 0
	behavior, err := p.profileRepo.GetBehaviorProfileByEmail(ctx, sequence.Email)
	if err != nil {
		return fmt.Errorf("failed to load behavior profile: %w", err)
	}
	if behavior != nil {
		engagementScore = behavior.EngagementScore
	}

	sequencer := p.qualifier.Sequencer()
	now := time.Now()

	if !sequencer.ShouldSendEmail(sequence, engagementScore, now) {
		if sequence.Status.IsTerminal() || !sequence.IsActive {
			logger.Info(ctx, "Sequence no longer sendable, dropping job", "status", sequence.Status)
			return nil
		}

		// Not due yet, or suppressed by engagement or a recent reply.
		// Recheck when the schedule says so, or after the guard window.
		delay := guardRecheckDelay
		if sequence.NextEmailDate != nil && sequence.NextEmailDate.After(now) {
			delay = time.Until(*sequence.NextEmailDate)
		}
		logger.Info(ctx, "Follow-up email not sendable yet, rescheduling", "delay", delay)
		return p.queue.EnqueueWithDelay(ctx, queue.JobTypeSendFollowUp, job.Payload, delay)
	}

	next := sequencer.GetNextEmail(sequence)
	if next == nil {
		logger.Info(ctx, "No remaining steps in sequence")
		return nil
	}

	// Personalize from the progressive profile's collected fields
	data := map[string]string{}
	profile, err := p.profileRepo.GetProfileByEmail(ctx, sequence.Email)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil {
		data["name"] = profile.Fields["name"]
		data["company"] = profile.Fields["company"]
	}

	subject := sequencer.PersonalizeEmailContent(next.Subject, data)

	email := client.FollowUpEmail{
		To:         sequence.Email,
		Subject:    subject,
		TemplateID: next.TemplateID,
		SequenceID: sequence.ID,
		Step:       next.Step,
		Priority:   next.Priority,
	}

	if _, err := p.notifier.SendFollowUpEmail(ctx, email); err != nil {
		logger.LogError(ctx, "Failed to send follow-up email", err, "step", next.Step)
		return err
	}

	sentAt := time.Now()
	if err := sequencer.UpdateSequenceAfterEmail(sequence, next.TemplateID, subject, sentAt); err != nil {
		return fmt.Errorf("failed to advance sequence: %w", err)
	}

	if err := p.sequenceRepo.UpdateSequence(ctx, sequence); err != nil {
		return fmt.Errorf("failed to store sequence: %w", err)
	}

	logger.Info(ctx, "Follow-up email sent",
		"step", next.Step, "template_id", next.TemplateID, "status", sequence.Status)

	// Schedule the next step while the sequence is still running
	if sequence.Status == models.SequenceStatusActive && sequence.NextEmailDate != nil {
		delay := time.Until(*sequence.NextEmailDate)
		if delay < 0 {
			delay = 0
		}
		if err := p.queue.EnqueueWithDelay(ctx, queue.JobTypeSendFollowUp, job.Payload, delay); err != nil {
			return fmt.Errorf("failed to enqueue next follow-up job: %w", err)
		}
		logger.Info(ctx, "Scheduled next follow-up email", "next_email_date", sequence.NextEmailDate)
	}

	return nil
}
