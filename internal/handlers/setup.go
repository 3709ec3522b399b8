package handlers

import (
	"context"
	"net/http"
	"time"

	"chatapp-gateway/internal/auth"
	"chatapp-gateway/internal/keyValue"
	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// UserChecker reports whether a user still exists.
type UserChecker interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

type Handlers struct {
	auth    *auth.Service
	chat    *service.Service
	users   UserChecker
	cache   keyValue.Store
	gateway http.Handler
	sugar   *zap.SugaredLogger
}

func New(authService *auth.Service, chat *service.Service, users UserChecker, cache keyValue.Store, gateway http.Handler, sugar *zap.SugaredLogger) *Handlers {
	return &Handlers{
		auth:    authService,
		chat:    chat,
		users:   users,
		cache:   cache,
		gateway: gateway,
		sugar:   sugar,
	}
}

// Routes builds the HTTP router. The websocket endpoint sits outside the
// request timeout since its connection outlives the request.
func (h *Handlers) Routes(cfg *models.ConfigFile) http.Handler {
	r := chi.NewRouter()
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(AllowCors(cfg.AllowedOrigins))

	r.Handle("/ws", h.gateway)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(60 * time.Second))
		api.Get("/health", Health)

		api.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.Post("/logout", h.Logout)
			r.With(h.UserVerifier).Get("/isLoggedIn", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		})

		api.Route("/users", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Get("/{userID}", h.GetUserInfo)
			r.Patch("/me", h.UpdateUserInfo)
		})

		api.Route("/servers", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Post("/", h.CreateServer)
			r.Post("/join", h.JoinServer)
			r.Route("/{serverID}", func(r chi.Router) {
				r.Get("/", h.GetServer)
				r.Patch("/", h.UpdateServer)
				r.Delete("/", h.DeleteServer)
				r.Post("/leave", h.LeaveServer)
				r.Get("/members", h.GetMemberList)
				r.Get("/channels", h.GetChannelList)
				r.Post("/channels", h.CreateChannel)
			})
		})

		api.Route("/channels/{channelID}", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Patch("/", h.UpdateChannel)
			r.Delete("/", h.DeleteChannel)
			r.Get("/messages", h.GetMessageList)
			r.Post("/messages", h.CreateMessage)
			r.Get("/voice", h.GetVoiceOccupants)
			r.Post("/voice", h.JoinVoice)
		})

		api.Route("/messages/{messageID}", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Patch("/", h.EditMessage)
			r.Delete("/", h.DeleteMessage)
		})

		api.Route("/voice", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Delete("/", h.LeaveVoice)
			r.Patch("/", h.UpdateVoiceState)
		})
	})

	return r
}
