package elevation

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/openreach/openreach/pkg/api"
	"github.com/openreach/openreach/pkg/async"
	"github.com/openreach/openreach/pkg/audit"
	"github.com/openreach/openreach/pkg/config"
	"github.com/openreach/openreach/pkg/contextkeys"
	"github.com/openreach/openreach/pkg/observability"
	"github.com/openreach/openreach/pkg/storage"
)

const auditWriteTimeout = 5 * time.Second

// Options configures the elevation protocol.
type Options struct {
	// Secret is the primary shared secret. Elevation can never succeed while
	// it is unset.
	Secret string

	// SecretBackup optionally accepts a second secret so the primary can be
	// rotated without downtime. Unset, it matches nothing.
	SecretBackup string

	// JTIEnabled requires a single-use token per elevation attempt.
	JTIEnabled bool

	// RateLimit caps elevation attempts per client address per window.
	RateLimit int
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg config.SuperAdminConfig) Options {
	return Options{
		Secret:       cfg.Secret,
		SecretBackup: cfg.SecretBackup,
		JTIEnabled:   cfg.JTIEnabled,
		RateLimit:    cfg.RateLimit,
	}
}

// Request carries one elevation attempt's inputs. User is the
// pre-authenticated acting user; Secret and JTI come from request headers.
type Request struct {
	User       *api.User
	Secret     string
	JTI        string
	ClientAddr string
	Action     string
	Method     string
	Path       string
}

// Protocol is the per-request privilege-elevation guard. It grants only to
// global admins who pass the dual-secret check, the distributed rate limit,
// and the single-use token check; every grant sets the request-scoped
// elevation flag and emits one audit event.
//
// Shared-store outages fail open: the fault is logged and counted, the
// attempt proceeds. See DESIGN.md for the trade-off.
type Protocol struct {
	opts     Options
	limiter  *AttemptLimiter
	replay   *ReplayGuard
	auditLog audit.Logger
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewProtocol creates the elevation protocol on the shared store. auditLog
// must not be nil (use audit.NopLogger to discard); metrics may be nil.
func NewProtocol(opts Options, store *storage.RedisClient, auditLog audit.Logger, logger *observability.Logger, metrics *observability.Metrics) *Protocol {
	return &Protocol{
		opts:     opts,
		limiter:  NewAttemptLimiter(store, opts.RateLimit),
		replay:   NewReplayGuard(store),
		auditLog: auditLog,
		logger:   logger,
		metrics:  metrics,
	}
}

// Attempt runs the elevation state machine for one request. Every non-grant
// outcome means "fall through to the ordinary evaluators"; the caller never
// rejects a request because of it.
func (p *Protocol) Attempt(ctx context.Context, req *Request) *Decision {
	// Role gate comes first: no combination of headers moves a non-admin
	// past this point.
	if req.User == nil || req.User.Role != api.RoleGlobalAdmin {
		return p.decide(StateNotAdmin)
	}

	// Elevation is evaluated at most once per request; a prior grant in the
	// same handler chain short-circuits without repeating secret, rate, or
	// token work (and without a second audit entry).
	if IsElevated(ctx) {
		return &Decision{State: StateElevated, Elevated: true}
	}

	if req.Secret == "" {
		return p.decide(StateAdminNoSecret)
	}

	// The attempt budget is spent before the secret outcome is known, so
	// brute-forcing the secret burns the same budget as valid attempts.
	withinBudget := true
	ok, err := p.limiter.Consume(ctx, req.ClientAddr)
	if err != nil {
		p.storeFault("rate_limit", err)
	} else {
		withinBudget = ok
	}

	if !p.secretMatches(req.Secret) {
		p.logger.WithFields(map[string]interface{}{
			"user_id":     req.User.ID,
			"client_addr": req.ClientAddr,
		}).Warn("superadmin elevation denied: invalid secret")
		return p.decide(StateSecretInvalid)
	}

	if !withinBudget {
		p.logger.WithFields(map[string]interface{}{
			"user_id":     req.User.ID,
			"client_addr": req.ClientAddr,
		}).Warn("superadmin elevation denied: rate limit exceeded")
		return p.decide(StateRateExceeded)
	}

	if p.opts.JTIEnabled {
		if req.JTI == "" {
			p.logger.WithField("user_id", req.User.ID).
				Warn("superadmin elevation denied: missing single-use token")
			return p.decide(StateJTIMissing)
		}

		fresh, err := p.replay.Consume(ctx, req.JTI)
		if err != nil {
			p.storeFault("replay", err)
		} else if !fresh {
			p.logger.WithFields(map[string]interface{}{
				"user_id":     req.User.ID,
				"client_addr": req.ClientAddr,
			}).Warn("superadmin elevation denied: replayed single-use token")
			return p.decide(StateJTIReplayed)
		}
	}

	if f := flagFrom(ctx); f != nil {
		f.Set()
	}

	// The audit task is started before the decision is returned; the
	// request path never awaits it.
	p.emitAudit(ctx, req)

	if p.metrics != nil {
		p.metrics.ElevationAttemptsTotal.WithLabelValues(string(StateElevated)).Inc()
		p.metrics.ElevationGrantsTotal.Inc()
	}

	p.logger.WithFields(map[string]interface{}{
		"user_id":     req.User.ID,
		"client_addr": req.ClientAddr,
		"action":      req.Action,
	}).Info("superadmin elevation granted")

	return &Decision{State: StateElevated, Elevated: true}
}

// secretMatches compares the presented secret against the configured
// secrets in constant time. An unset backup never matches.
func (p *Protocol) secretMatches(presented string) bool {
	if p.opts.Secret != "" &&
		subtle.ConstantTimeCompare([]byte(presented), []byte(p.opts.Secret)) == 1 {
		return true
	}
	if p.opts.SecretBackup != "" &&
		subtle.ConstantTimeCompare([]byte(presented), []byte(p.opts.SecretBackup)) == 1 {
		return true
	}
	return false
}

func (p *Protocol) decide(state State) *Decision {
	if p.metrics != nil {
		p.metrics.ElevationAttemptsTotal.WithLabelValues(string(state)).Inc()
	}
	return &Decision{State: state}
}

// storeFault records a shared-store failure. The protocol fails open: the
// fault is visible to operators through the error log and the fault
// counter, but the attempt proceeds.
func (p *Protocol) storeFault(operation string, err error) {
	p.logger.WithError(err).WithField("operation", operation).
		Error("shared store unreachable, failing open")
	if p.metrics != nil {
		p.metrics.StoreFaultsTotal.WithLabelValues(operation).Inc()
	}
}

// emitAudit starts the fire-and-forget audit write for a granted elevation.
// The task runs detached from the request context so an in-flight write
// survives the response.
func (p *Protocol) emitAudit(ctx context.Context, req *Request) {
	event := &audit.Event{
		Timestamp:      time.Now().UTC(),
		EventType:      audit.EventTypeElevation,
		UserID:         req.User.ID,
		OrganizationID: req.User.OrganizationID,
		Action:         req.Action,
		IPAddress:      req.ClientAddr,
		Method:         req.Method,
		Path:           req.Path,
		Context:        "superadmin mode",
		RequestID:      contextkeys.GetRequestID(ctx),
	}

	async.SafeGo(context.Background(), auditWriteTimeout, "elevation audit", p.logger, func(taskCtx context.Context) error {
		if err := p.auditLog.Log(taskCtx, event); err != nil {
			if p.metrics != nil {
				p.metrics.AuditWriteErrors.Inc()
				p.metrics.AuditWritesTotal.WithLabelValues("failure").Inc()
			}
			return err
		}
		if p.metrics != nil {
			p.metrics.AuditWritesTotal.WithLabelValues("success").Inc()
		}
		return nil
	})
}
