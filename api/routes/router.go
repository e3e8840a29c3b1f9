package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmarrero/fanlink-backend/api/controllers"
	"github.com/dmarrero/fanlink-backend/api/middleware"
	"github.com/dmarrero/fanlink-backend/internal/inbox"
	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/realtime"
	"github.com/dmarrero/fanlink-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	inboxService inbox.Service,
	messagesService controllers.MessagesService,
	followsService controllers.FollowsService,
	campaignsService controllers.CampaignsService,
	gateway *realtime.Gateway,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/inbox", func(r chi.Router) {
			r.Get("/", controllers.InboxList(inboxService, logg))
			r.Get("/unread-count", controllers.InboxUnreadCount(inboxService, logg))
			r.Post("/{envelopeId}/read", controllers.InboxMarkRead(inboxService, logg))
			r.Post("/read-all", controllers.InboxMarkAllRead(inboxService, logg))
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", controllers.MessagesSend(messagesService, logg))
			r.Get("/conversations/{userId}", controllers.MessagesListConversation(messagesService, logg))
			r.Post("/{messageId}/read", controllers.MessagesMarkRead(messagesService, logg))
		})

		r.Route("/follows", func(r chi.Router) {
			r.Post("/", controllers.FollowCreate(followsService, logg))
			r.Delete("/{creatorId}", controllers.FollowDelete(followsService, logg))
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.RoleCreator), logg))
			r.Get("/", controllers.CampaignList(campaignsService, logg))
			r.Post("/", controllers.CampaignCreate(campaignsService, logg))
			r.Get("/{campaignId}", controllers.CampaignGet(campaignsService, logg))
			r.Put("/{campaignId}", controllers.CampaignUpdate(campaignsService, logg))
			r.Post("/{campaignId}/schedule", controllers.CampaignSchedule(campaignsService, logg))
			r.Post("/{campaignId}/cancel", controllers.CampaignCancel(campaignsService, logg))
			r.Post("/{campaignId}/pause", controllers.CampaignPauseRemaining(campaignsService, logg))
		})

		r.Get("/realtime/ws", controllers.RealtimeSocket(gateway, logg))
	})

	return r
}
