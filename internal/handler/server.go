// Package handler implements the HTTP handlers for the itinerary API.
// All handlers are methods on Server; methods are split into resource files
// (reservation.go, group.go, ...) but share the same dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/calendar"
	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/service"
	"github.com/pkordes/itinerary/internal/validation"
)

// ReservationServicer defines the record operations the handlers depend on.
// Defining the interfaces here, in the consumer package, lets handler tests
// inject mocks without touching the database.
type ReservationServicer interface {
	Create(ctx context.Context, owner uuid.UUID, res domain.Reservation) (domain.Reservation, error)
	GetByID(ctx context.Context, owner, id uuid.UUID) (domain.Reservation, error)
	ListPaged(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Reservation, int64, error)
	Update(ctx context.Context, owner, id uuid.UUID, edit domain.ReservationEdit) (domain.Reservation, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
	ApplyStatus(ctx context.Context, owner, id uuid.UUID, upd domain.StatusUpdate) (domain.Reservation, error)
}

// GroupServicer defines the trip grouping operations.
type GroupServicer interface {
	Create(ctx context.Context, owner uuid.UUID, ids []uuid.UUID) (domain.GroupKey, error)
	Merge(ctx context.Context, owner uuid.UUID, keys []domain.GroupKey) (domain.GroupKey, error)
	Split(ctx context.Context, owner uuid.UUID, key domain.GroupKey) ([]domain.GroupKey, error)
	Ungroup(ctx context.Context, owner, id uuid.UUID) error
	Delete(ctx context.Context, owner uuid.UUID, key domain.GroupKey) (int64, error)
	DeleteMany(ctx context.Context, owner uuid.UUID, keys []domain.GroupKey) (int64, error)
	Rename(ctx context.Context, owner uuid.UUID, key domain.GroupKey, name string) error
}

// ViewServicer builds itinerary views.
type ViewServicer interface {
	Build(ctx context.Context, owner uuid.UUID, asOf time.Time) (domain.Itinerary, error)
	Group(ctx context.Context, owner uuid.UUID, key domain.GroupKey) (domain.TripView, error)
}

// IngestServicer runs the document pipeline.
type IngestServicer interface {
	Ingest(ctx context.Context, owner uuid.UUID, doc service.Document) (service.IngestResult, error)
}

// UserServicer manages owner profiles.
type UserServicer interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd domain.ProfileUpdate) (domain.User, error)
	RotateCalendarToken(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// CalendarServicer renders iCalendar documents.
type CalendarServicer interface {
	ExportGroup(ctx context.Context, owner uuid.UUID, key domain.GroupKey, m calendar.Method) (body, name string, err error)
	Feed(ctx context.Context, token string) (string, error)
}

// Deps are the collaborators of a Server. Metrics, OpenAPI and MailTrigger
// are optional: nil Metrics or OpenAPI leaves that route unmounted and a nil
// MailTrigger makes the mailbox webhook a no-op.
type Deps struct {
	Reservations ReservationServicer
	Groups       GroupServicer
	Views        ViewServicer
	Ingest       IngestServicer
	Users        UserServicer
	Calendar     CalendarServicer
	Metrics      http.Handler
	OpenAPI      []byte
	MailTrigger  chan<- struct{}
	Logger       *slog.Logger
	Now          func() time.Time
}

// Server holds the dependencies shared by every handler.
type Server struct {
	reservations ReservationServicer
	groups       GroupServicer
	views        ViewServicer
	ingest       IngestServicer
	users        UserServicer
	calendar     CalendarServicer
	metrics      http.Handler
	openAPI      []byte
	mailTrigger  chan<- struct{}
	validate     *validation.Validator
	log          *slog.Logger
	now          func() time.Time
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{
		reservations: d.Reservations,
		groups:       d.Groups,
		views:        d.Views,
		ingest:       d.Ingest,
		users:        d.Users,
		calendar:     d.Calendar,
		metrics:      d.Metrics,
		openAPI:      d.OpenAPI,
		mailTrigger:  d.MailTrigger,
		validate:     validation.New(),
		log:          d.Logger,
		now:          d.Now,
	}
}

// Routes returns the API router. Cross-cutting middleware (request id,
// logging, CORS, body limits) is applied by the caller around it.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	if s.openAPI != nil {
		r.Get("/openapi.yaml", s.GetOpenAPI)
	}
	r.Get("/calendar/{file}", s.GetCalendarFeed)
	r.Post("/webhooks/gmail", s.PostGmailWebhook)
	r.Post("/users", s.CreateUser)

	r.Group(func(r chi.Router) {
		r.Use(RequireOwner)

		r.Get("/users/me", s.GetMe)
		r.Patch("/users/me", s.UpdateMe)
		r.Post("/users/me/calendar-token", s.RotateCalendarToken)

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", s.ListReservations)
			r.Post("/", s.CreateReservation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetReservation)
				r.Patch("/", s.UpdateReservation)
				r.Delete("/", s.DeleteReservation)
				r.Put("/status", s.UpdateReservationStatus)
				r.Delete("/group", s.UngroupReservation)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", s.CreateGroup)
			r.Post("/merge", s.MergeGroups)
			r.Post("/delete", s.DeleteGroups)
			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", s.GetGroup)
				r.Delete("/", s.DeleteGroup)
				r.Put("/name", s.RenameGroup)
				r.Post("/split", s.SplitGroup)
				r.Get("/calendar", s.ExportGroupCalendar)
			})
		})

		r.Get("/itinerary", s.GetItinerary)
		r.Post("/documents", s.IngestDocument)
	})

	return r
}
