// Package drip is the campaign scheduler. One Tick advances a bounded
// batch of due enrollments a single step each; all state lives in the
// store between ticks, so any external trigger (cron, HTTP poll) can drive
// it safely.
package drip

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/signalcrest/outreach/internal/mailer"
	"github.com/signalcrest/outreach/internal/metrics"
	"github.com/signalcrest/outreach/internal/models"
	"github.com/signalcrest/outreach/internal/ratelimit"
	"github.com/signalcrest/outreach/internal/repository"
	"github.com/signalcrest/outreach/internal/token"
)

// Fallbacks used when marketing_config is missing or unparsable. The
// window defaults leave sending always allowed; the rate default is a
// deliberately conservative cap.
const (
	defaultQuietStart  = 0
	defaultQuietEnd    = 24
	defaultRatePerHour = 100
	defaultBatchSize   = 50
)

// Result is the outcome of one tick, the scheduler's only feedback channel
type Result struct {
	Processed    int `json:"processed"`
	Sent         int `json:"sent"`
	Queued       int `json:"queued"`
	Suppressed   int `json:"suppressed"`
	Completed    int `json:"completed"`
	SkippedQuiet int `json:"skipped_quiet"`
}

// Options carries injectable collaborators. Zero values select production
// behavior (real clock, math/rand, no metrics).
type Options struct {
	FromEmail string
	FromName  string
	Clock     func() time.Time
	Rand      func(n int) int
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.Limiter
}

// Engine advances enrollments through their campaigns
type Engine struct {
	logger       *slog.Logger
	campaigns    *repository.CampaignRepository
	enrollments  *repository.EnrollmentRepository
	contacts     *repository.ContactRepository
	sends        *repository.SendRepository
	suppressions *repository.SuppressionRepository
	settings     *repository.SettingsRepository
	limiter      *ratelimit.Limiter
	transport    mailer.Transport
	metrics      *metrics.Metrics

	fromEmail string
	fromName  string
	now       func() time.Time
	randInt   func(n int) int
}

// New creates a scheduler engine over db using the given transport
func New(db *sql.DB, transport mailer.Transport, logger *slog.Logger, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.Intn
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(db)
	}

	return &Engine{
		logger:       logger.With("component", "drip"),
		campaigns:    repository.NewCampaignRepository(db),
		enrollments:  repository.NewEnrollmentRepository(db),
		contacts:     repository.NewContactRepository(db),
		sends:        repository.NewSendRepository(db),
		suppressions: repository.NewSuppressionRepository(db),
		settings:     repository.NewSettingsRepository(db),
		limiter:      opts.Limiter,
		transport:    transport,
		metrics:      opts.Metrics,
		fromEmail:    opts.FromEmail,
		fromName:     opts.FromName,
		now:          opts.Clock,
		randInt:      opts.Rand,
	}
}

// Now reads the engine's clock. Callers scheduling work against the same
// store should use it so tests can pin a single clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// schedConfig is the per-tick view of marketing_config. It is re-read on
// every tick so quiet hours and the rate cap can be retuned live.
type schedConfig struct {
	quietStart  int
	quietEnd    int
	ratePerHour int
	senderName  string
}

func (e *Engine) loadConfig() schedConfig {
	cfg := schedConfig{
		quietStart:  defaultQuietStart,
		quietEnd:    defaultQuietEnd,
		ratePerHour: defaultRatePerHour,
		senderName:  e.fromName,
	}

	values, err := e.settings.All()
	if err != nil {
		e.logger.Error("failed to load marketing config, using defaults", "error", err)
		return cfg
	}

	if start, err := strconv.Atoi(values[models.ConfigKeyQuietStart]); err == nil && start >= 0 && start <= 23 {
		if end, err := strconv.Atoi(values[models.ConfigKeyQuietEnd]); err == nil && end >= 0 && end <= 23 {
			cfg.quietStart = start
			cfg.quietEnd = end
		}
	}
	if rate, err := strconv.Atoi(values[models.ConfigKeyRatePerHour]); err == nil && rate > 0 {
		cfg.ratePerHour = rate
	}
	if name := values[models.ConfigKeySenderName]; name != "" {
		cfg.senderName = name
	}

	return cfg
}

// Tick runs one scheduler pass: select up to batchSize due enrollments,
// oldest due first, and advance each one step. It halts early when the
// hourly send budget runs out; untouched enrollments stay due for the next
// tick. Safe to invoke repeatedly and from concurrent callers; a
// compare-and-swap claim keeps two ticks from double-sending.
func (e *Engine) Tick(ctx context.Context, batchSize int) (*Result, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	start := e.now()
	cfg := e.loadConfig()
	windowOpen := withinSendWindow(start.Hour(), cfg.quietStart, cfg.quietEnd)

	due, err := e.enrollments.DueBatch(start, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select due enrollments: %w", err)
	}

	res := &Result{}
	for i := range due {
		enrollment := &due[i]

		claimed, err := e.enrollments.Claim(enrollment.ID, enrollment.NextStepOrder)
		if err != nil {
			return res, fmt.Errorf("claim enrollment %s: %w", enrollment.ID, err)
		}
		if !claimed {
			// Another tick owns this row
			continue
		}

		halt, err := e.processEnrollment(ctx, enrollment, cfg, windowOpen, res)
		if err != nil {
			e.logger.Error("enrollment processing failed",
				"enrollment_id", enrollment.ID,
				"campaign_id", enrollment.CampaignID,
				"error", err,
			)
			if relErr := e.enrollments.Release(enrollment.ID); relErr != nil {
				e.logger.Error("failed to release claim", "enrollment_id", enrollment.ID, "error", relErr)
			}
			continue
		}
		if halt {
			break
		}
	}

	e.observe(res, e.now().Sub(start))

	e.logger.Info("tick complete",
		"due", len(due),
		"processed", res.Processed,
		"sent", res.Sent,
		"queued", res.Queued,
		"suppressed", res.Suppressed,
		"completed", res.Completed,
		"skipped_quiet", res.SkippedQuiet,
	)
	return res, nil
}

// processEnrollment advances one claimed enrollment. A true halt return
// stops the whole tick (rate budget exhausted); the claim has been released
// by then.
func (e *Engine) processEnrollment(ctx context.Context, enrollment *models.Enrollment, cfg schedConfig, windowOpen bool, res *Result) (bool, error) {
	now := e.now()

	// Suppressed contacts never receive mail, but their enrollments still
	// advance so they complete instead of staying due forever.
	suppressed, err := e.suppressions.IsSuppressed(enrollment.ContactID)
	if err != nil {
		return false, fmt.Errorf("suppression check: %w", err)
	}
	if suppressed {
		completed, err := e.advance(enrollment, nil)
		if err != nil {
			return false, err
		}
		res.Processed++
		res.Suppressed++
		if completed {
			res.Completed++
		}
		return false, nil
	}

	step, err := e.campaigns.GetStep(enrollment.CampaignID, enrollment.NextStepOrder)
	if err != nil {
		return false, fmt.Errorf("step lookup: %w", err)
	}
	if step == nil {
		// Pointer past the end of the sequence: the campaign is done
		if err := e.enrollments.Complete(enrollment.ID, nil); err != nil {
			return false, err
		}
		res.Processed++
		res.Completed++
		return false, nil
	}

	if !windowOpen {
		if err := e.enrollments.Defer(enrollment.ID, nextWindowOpen(now, cfg.quietStart)); err != nil {
			return false, err
		}
		res.Processed++
		res.SkippedQuiet++
		return false, nil
	}

	ok, err := e.limiter.Take(ctx, cfg.ratePerHour, 1)
	if err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}
	if !ok {
		// Budget exhausted: release this row and halt the entire tick.
		// Later-due enrollments are retried next tick in the same order.
		if err := e.enrollments.Release(enrollment.ID); err != nil {
			return false, err
		}
		if e.metrics != nil {
			e.metrics.RateLimitedTotal.Inc()
		}
		e.logger.Info("hourly rate cap reached, halting tick", "rate_per_hour", cfg.ratePerHour)
		return true, nil
	}

	status, err := e.sendStep(ctx, enrollment, step, cfg)
	if err != nil {
		return false, err
	}

	sentAt := now
	completed, err := e.advance(enrollment, &sentAt)
	if err != nil {
		return false, err
	}

	res.Processed++
	switch status {
	case models.SendStatusSent:
		res.Sent++
	case models.SendStatusQueued:
		res.Queued++
	}
	if completed {
		res.Completed++
	}
	return false, nil
}

// sendStep composes, sends and logs one step email, returning the logged
// status. Delivery failure is terminal for the step: it is recorded as
// failed and the caller still advances the enrollment, so one bad address
// cannot stall a campaign.
func (e *Engine) sendStep(ctx context.Context, enrollment *models.Enrollment, step *models.Step, cfg schedConfig) (string, error) {
	contact, err := e.contacts.GetByID(enrollment.ContactID)
	if err != nil {
		return "", fmt.Errorf("contact lookup: %w", err)
	}

	vars := e.templateVars(enrollment, contact, cfg)
	variant, subjectTmpl, bodyTmpl := e.chooseVariant(step)
	subject := token.Render(subjectTmpl, vars)
	body := token.Render(bodyTmpl, vars)

	entry := &models.Send{
		ContactID:  enrollment.ContactID,
		CampaignID: enrollment.CampaignID,
		StepOrder:  step.StepOrder,
		Subject:    subject,
		Body:       body,
		MetaJSON:   fmt.Sprintf(`{"variant":%q}`, variant),
	}

	if contact == nil || contact.Email == "" {
		entry.Status = models.SendStatusFailed
		e.logger.Warn("no deliverable address for enrollment",
			"enrollment_id", enrollment.ID, "contact_id", enrollment.ContactID)
		return entry.Status, e.recordSend(entry)
	}
	entry.ToEmail = contact.Email

	result, err := e.transport.Send(ctx, &mailer.Message{
		From:     e.fromEmail,
		FromName: cfg.senderName,
		To:       contact.Email,
		Subject:  subject,
		Text:     body,
	})
	if err != nil || result == nil || !result.OK {
		entry.Status = models.SendStatusFailed
		reason := ""
		if result != nil {
			entry.Provider = result.Provider
			entry.ProviderID = result.ID
			reason = result.Message
		}
		e.logger.Warn("send failed",
			"enrollment_id", enrollment.ID,
			"to", contact.Email,
			"reason", reason,
			"error", err,
		)
		return entry.Status, e.recordSend(entry)
	}

	entry.Provider = result.Provider
	entry.ProviderID = result.ID
	entry.Status = mapProviderStatus(result.Status)
	e.logger.Debug("step email sent",
		"enrollment_id", enrollment.ID,
		"to", contact.Email,
		"step", step.StepOrder,
		"variant", variant,
		"provider_id", result.ID,
	)
	return entry.Status, e.recordSend(entry)
}

func (e *Engine) recordSend(entry *models.Send) error {
	if err := e.sends.Create(entry); err != nil {
		return fmt.Errorf("record send: %w", err)
	}
	if e.metrics != nil {
		e.metrics.SendsTotal.WithLabelValues(entry.Status).Inc()
	}
	return nil
}

// advance moves a claimed enrollment to the step after its current one,
// scheduling it delay_minutes out, or completes it when the sequence is
// exhausted. Returns whether the enrollment completed.
func (e *Engine) advance(enrollment *models.Enrollment, sentAt *time.Time) (bool, error) {
	next, err := e.campaigns.NextStep(enrollment.CampaignID, enrollment.NextStepOrder)
	if err != nil {
		return false, fmt.Errorf("next step lookup: %w", err)
	}
	if next == nil {
		if err := e.enrollments.Complete(enrollment.ID, sentAt); err != nil {
			return false, err
		}
		return true, nil
	}

	nextRun := e.now().Add(time.Duration(next.DelayMinutes) * time.Minute)
	if err := e.enrollments.Advance(enrollment.ID, next.StepOrder, nextRun, sentAt); err != nil {
		return false, err
	}
	return false, nil
}

// templateVars resolves the variable map for one send: the snapshot taken
// at enrollment time when present, otherwise the contact's live fields,
// always overlaid with the computed month and configured sender name.
func (e *Engine) templateVars(enrollment *models.Enrollment, contact *models.Contact, cfg schedConfig) map[string]string {
	vars := map[string]string{}

	if enrollment.DataJSON != "" {
		if err := json.Unmarshal([]byte(enrollment.DataJSON), &vars); err != nil {
			e.logger.Warn("invalid enrollment data snapshot, using live contact fields",
				"enrollment_id", enrollment.ID, "error", err)
			vars = map[string]string{}
		}
	}

	if len(vars) == 0 && contact != nil {
		vars["first_name"] = contact.FirstName
		vars["last_name"] = contact.LastName
		vars["company"] = contact.Company
		vars["email"] = contact.Email
	}

	vars["month"] = e.now().Month().String()
	vars["sender_name"] = cfg.senderName
	return vars
}

// chooseVariant picks A or B content for a step. Steps without alternate
// content always use A; otherwise B wins a uniform [0,100) draw below
// weight_b.
func (e *Engine) chooseVariant(step *models.Step) (variant, subject, body string) {
	if !step.HasVariantB() {
		return "A", step.Subject, step.Body
	}
	if e.randInt(100) < step.WeightB {
		subject, body = step.SubjectB, step.BodyB
		if subject == "" {
			subject = step.Subject
		}
		if body == "" {
			body = step.Body
		}
		return "B", subject, body
	}
	return "A", step.Subject, step.Body
}

func mapProviderStatus(status string) string {
	switch status {
	case "", "sent", "delivered":
		return models.SendStatusSent
	case "queued", "pending", "processing":
		return models.SendStatusQueued
	default:
		return models.SendStatusQueued
	}
}

func (e *Engine) observe(res *Result, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.TicksTotal.Inc()
	e.metrics.TickDurationSeconds.Observe(elapsed.Seconds())
	e.metrics.EnrollmentsProcessed.Add(float64(res.Processed))
	e.metrics.SuppressedTotal.Add(float64(res.Suppressed))
	e.metrics.CompletedTotal.Add(float64(res.Completed))
	e.metrics.SkippedQuietTotal.Add(float64(res.SkippedQuiet))
}
