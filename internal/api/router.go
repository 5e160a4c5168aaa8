package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caredesk/clinic-booking/internal/appointment"
	"github.com/caredesk/clinic-booking/internal/auth"
	"github.com/caredesk/clinic-booking/internal/catalog"
	"github.com/caredesk/clinic-booking/internal/metrics"
	"github.com/caredesk/clinic-booking/internal/news"
	"github.com/caredesk/clinic-booking/internal/review"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

type RouterConfig struct {
	Auth         *auth.Service
	Catalog      *catalog.Service
	Schedules    *schedule.Service
	Appointments *appointment.Service
	Reviews      *review.Service
	News         *news.Service

	Push http.Handler // websocket endpoint, nil disables it

	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Log     zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logging(cfg.Log, cfg.Metrics))

	authn := cfg.Auth.VerifyToken
	anyUser := RequireAuth(authn)
	patientOnly := RequireAuth(authn, auth.RolePatient)
	doctorOnly := RequireAuth(authn, auth.RoleDoctor)
	adminOnly := RequireAuth(authn, auth.RoleAdmin)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	ah := &authHandlers{svc: cfg.Auth}
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", ah.register)
		r.Post("/login", ah.login)
		r.Post("/otp/request", ah.requestOTP)
		r.Post("/otp/verify", ah.verifyOTP)
		r.With(anyUser).Post("/password", ah.changePassword)
		r.With(anyUser).Get("/profile", ah.profile)
		r.With(anyUser).Put("/profile", ah.updateProfile)
	})

	ch := &catalogHandlers{svc: cfg.Catalog}
	r.Route("/hospitals", func(r chi.Router) {
		r.Get("/", ch.listHospitals)
		r.Get("/{id}", ch.getHospital)
		r.With(adminOnly).Post("/", ch.createHospital)
		r.With(adminOnly).Put("/{id}", ch.updateHospital)
		r.With(adminOnly).Delete("/{id}", ch.deleteHospital)
	})
	r.Route("/branches", func(r chi.Router) {
		r.Get("/", ch.listBranches)
		r.With(adminOnly).Post("/", ch.createBranch)
		r.With(adminOnly).Put("/{id}", ch.updateBranch)
		r.With(adminOnly).Delete("/{id}", ch.deleteBranch)
	})
	r.Route("/specialties", func(r chi.Router) {
		r.Get("/", ch.listSpecialties)
		r.With(adminOnly).Post("/", ch.createSpecialty)
		r.With(adminOnly).Put("/{id}", ch.updateSpecialty)
		r.With(adminOnly).Delete("/{id}", ch.deleteSpecialty)
	})
	r.Route("/services", func(r chi.Router) {
		r.Get("/", ch.listServices)
		r.Get("/{id}", ch.getService)
		r.With(adminOnly).Post("/", ch.createService)
		r.With(adminOnly).Put("/{id}", ch.updateService)
		r.With(adminOnly).Delete("/{id}", ch.deleteService)
	})
	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", ch.listDoctors)
		r.With(doctorOnly).Get("/profile", ch.getDoctorProfile)
		r.Get("/{id}", ch.getDoctor)
		r.With(adminOnly).Post("/", ch.createDoctor)
		r.With(adminOnly).Put("/{id}", ch.updateDoctor)
		r.With(adminOnly).Delete("/{id}", ch.deleteDoctor)
	})

	sh := &scheduleHandlers{svc: cfg.Schedules, catalog: cfg.Catalog}
	r.Route("/schedules", func(r chi.Router) {
		r.Get("/doctor", sh.getDoctorSchedule)
		r.With(doctorOnly).Post("/doctor", sh.createSchedule)
		r.With(doctorOnly).Delete("/{id}", sh.deleteSchedule)
		r.With(doctorOnly).Post("/{id}/slots", sh.addSlot)
		r.With(doctorOnly).Put("/slots/{id}", sh.updateSlot)
		r.With(doctorOnly).Delete("/slots/{id}", sh.deleteSlot)
	})

	aph := &appointmentHandlers{svc: cfg.Appointments, catalog: cfg.Catalog, metrics: cfg.Metrics}
	r.Route("/appointments", func(r chi.Router) {
		r.Use(anyUser)
		r.With(patientOnly).Post("/", aph.book)
		r.Get("/", aph.list)
		r.Get("/{id}", aph.get)
		r.Post("/{id}/confirm", aph.confirm)
		r.With(doctorOnly).Post("/{id}/complete", aph.complete)
		r.With(patientOnly).Post("/{id}/cancel", aph.cancel)
		r.With(patientOnly).Post("/{id}/reschedule", aph.reschedule)
	})

	rh := &reviewHandlers{svc: cfg.Reviews}
	r.Route("/reviews", func(r chi.Router) {
		r.Get("/", rh.list)
		r.With(patientOnly).Post("/", rh.create)
		r.With(anyUser).Post("/{id}/reply", rh.reply)
		r.With(adminOnly).Delete("/{id}", rh.delete)
	})

	nh := &newsHandlers{svc: cfg.News}
	r.Route("/news", func(r chi.Router) {
		r.Get("/all", nh.listPublic)
		r.With(adminOnly).Get("/admin", nh.listAdmin)
		r.With(adminOnly).Post("/", nh.create)
		r.Get("/{id}", nh.getPublic)
		r.With(adminOnly).Put("/{id}", nh.update)
		r.With(adminOnly).Delete("/{id}", nh.delete)
	})

	if cfg.Push != nil {
		r.Handle("/ws/schedules", cfg.Push)
	}

	return r
}
