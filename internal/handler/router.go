package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	conversationHandler "github.com/symposium-ai/symposium/backend/internal/handler/conversation"
	thinkerHandler "github.com/symposium-ai/symposium/backend/internal/handler/thinker"
	"github.com/symposium-ai/symposium/backend/internal/handler/ws"
	middlewarePkg "github.com/symposium-ai/symposium/backend/internal/middleware"
	thinkerModel "github.com/symposium-ai/symposium/backend/internal/model/thinker"
	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
	aiService "github.com/symposium-ai/symposium/backend/internal/service/ai"
	conversationService "github.com/symposium-ai/symposium/backend/internal/service/conversation"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(
	thinkers thinkerModel.Store,
	convSvc *conversationService.Service,
	aiSvc *aiService.Service,
	orc *orchestrator.Orchestrator,
	allowedOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	// A nil *ai.Service must stay a nil interface for the handler's
	// availability check to work.
	var suggester thinkerHandler.Suggester
	if aiSvc != nil {
		suggester = aiSvc
	}

	thinkerH := thinkerHandler.New(thinkers, suggester)
	conversationH := conversationHandler.New(convSvc, thinkers, orc)
	wsH := ws.New(orc, convSvc)

	r.Route("/api", func(api chi.Router) {
		thinkerH.RegisterRoutes(api)
		conversationH.RegisterRoutes(api)
	})

	wsH.RegisterRoutes(r)

	return r
}
