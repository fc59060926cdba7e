package services

import (
	"errors"
	"log"
	"log/slog"
	"time"

	"access_portal/portal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Portal struct {
	user     UserService
	dataset  DatasetService
	request  RequestService
	approval ApprovalService
	grant    GrantService
	result   ResultService
	export   ExportService
	progress ProgressService
	comment  CommentService

	db        *gorm.DB
	stopSweep chan struct{}
}

type Options struct {
	// GrantDuration is the analysis window attached to grants issued on full
	// committee approval.
	GrantDuration time.Duration

	// Policy screens export approvals. Nil means no screening.
	Policy ContentPolicyCheck
}

const DefaultGrantDuration = 90 * 24 * time.Hour

func NewPortal(db *gorm.DB, userAuth auth.IdentityProvider, opts Options) Portal {
	if opts.GrantDuration == 0 {
		opts.GrantDuration = DefaultGrantDuration
	}
	if opts.Policy == nil {
		opts.Policy = allowAllPolicy{}
	}

	return Portal{
		user:     UserService{db: db, userAuth: userAuth},
		dataset:  DatasetService{db: db, userAuth: userAuth},
		request:  RequestService{db: db, userAuth: userAuth},
		approval: ApprovalService{db: db, userAuth: userAuth, grantDuration: opts.GrantDuration},
		grant:    GrantService{db: db, userAuth: userAuth},
		result:   ResultService{db: db, userAuth: userAuth},
		export:   ExportService{db: db, userAuth: userAuth, policy: opts.Policy},
		progress: ProgressService{db: db, userAuth: userAuth},
		comment:  CommentService{db: db, userAuth: userAuth},

		db:        db,
		stopSweep: make(chan struct{}),
	}
}

func (p *Portal) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/workflow-steps", WorkflowStepsHandler)

	r.Mount("/users", p.user.Routes())
	r.Mount("/datasets", p.dataset.Routes())
	r.Mount("/data-requests", p.request.Routes())
	r.Mount("/approval-decisions", p.approval.Routes())
	r.Mount("/access-grants", p.grant.Routes())
	r.Mount("/analysis-results", p.result.Routes())
	r.Mount("/export-requests", p.export.Routes())
	r.Mount("/workflow-progress", p.progress.Routes())
	r.Mount("/comments", p.comment.Routes())

	return r
}

func (p *Portal) InitAdmin(username, password string) {
	_, err := p.user.userAuth.CreateUser(auth.Registration{
		Username: username,
		Password: password,
		Role:     "Administrator",
	}, true)
	if errors.Is(err, auth.ErrUsernameAlreadyExists) {
		slog.Info("admin user already present, skipping bootstrap", "username", username)
		return
	}
	if err != nil {
		log.Panicf("error initializing admin at startup: %v", err)
	}
}

// StartExpirySweep flips overdue active grants to expired on a fixed interval
// so that grants whose window has passed do not linger as active between
// reads.
func (p *Portal) StartExpirySweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("grant expiry sweep started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			err := p.db.Transaction(expireOverdueGrants)
			if err != nil {
				slog.Error("grant expiry sweep failed", "error", err)
			}
		case <-p.stopSweep:
			slog.Info("grant expiry sweep stopped")
			return
		}
	}
}

func (p *Portal) StopExpirySweep() {
	close(p.stopSweep)
}
