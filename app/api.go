package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fiffu/livewatch/config"
	"github.com/fiffu/livewatch/lib"
	"github.com/fiffu/livewatch/lib/poller"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type cycleRunner interface {
	RunCycle(ctx context.Context) (*poller.CycleReport, error)
}

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service, p *poller.Poller) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc, p)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Sugar().Errorw("HTTP server stopped", "err", err)
				}
			}()
			log.Sugar().Infow("HTTP server listening", "addr", addr)
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service, runner cycleRunner) http.Handler {
	ctrl := &controller{log, svc, runner}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("livewatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", ctrl.listAccounts)
			r.Post("/", ctrl.addAccount)
			r.Delete("/{account_id}", ctrl.removeAccount)
			r.Get("/{account_id}/status", ctrl.accountStatus)
		})
		r.Get("/interval", ctrl.getInterval)
		r.Put("/interval", ctrl.setInterval)
		r.Post("/poll", ctrl.poll)
	})

	return r
}

type controller struct {
	log    *zap.Logger
	svc    *lib.Service
	runner cycleRunner
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if b != nil {
			w.Write(b)
		}
	}
}

// fail maps domain errors onto status codes.
func (ctrl *controller) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lib.ErrAlreadyExists), errors.Is(err, poller.ErrCycleInProgress):
		ctrl.reject(w, http.StatusConflict, err)
	case errors.Is(err, lib.ErrNotFound):
		ctrl.reject(w, http.StatusNotFound, err)
	case errors.Is(err, lib.ErrInvalidAccount), errors.Is(err, lib.ErrInvalidInterval):
		ctrl.reject(w, http.StatusBadRequest, err)
	default:
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		ctrl.reject(w, http.StatusInternalServerError, err)
	}
}

func (ctrl *controller) listAccounts(w http.ResponseWriter, r *http.Request) {
	ctrl.resolve(w, http.StatusOK, map[string]any{"accounts": ctrl.svc.ListAccounts()})
}

func (ctrl *controller) addAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(r.FormValue("id"))

	if err := ctrl.svc.AddAccount(ctx, id); err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusCreated, map[string]any{"id": id})
}

func (ctrl *controller) removeAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "account_id")

	if err := ctrl.svc.RemoveAccount(ctx, id); err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.reject(w, http.StatusNoContent, nil)
}

func (ctrl *controller) accountStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "account_id")

	state, err := ctrl.svc.AccountStatus(id)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, AccountStatusView{}.From(id, state))
}

func (ctrl *controller) getInterval(w http.ResponseWriter, r *http.Request) {
	ctrl.resolve(w, http.StatusOK, IntervalView{ctrl.svc.Interval()})
}

func (ctrl *controller) setInterval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	millis, err := strconv.ParseInt(r.FormValue("interval_ms"), 10, 64)
	if err != nil {
		ctrl.reject(w, http.StatusBadRequest, fmt.Errorf("interval_ms must be an integer: %w", err))
		return
	}
	if err := ctrl.svc.SetInterval(ctx, millis); err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, IntervalView{ctrl.svc.Interval()})
}

func (ctrl *controller) poll(w http.ResponseWriter, r *http.Request) {
	report, err := ctrl.runner.RunCycle(r.Context())
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, report)
}
