package pushnotification

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/pushsubscription"
	"github.com/taskpilot/taskpilot/pkg/cerr"
)

type Server struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		repo:     repo,
	}
}

type vapidKeyResponse struct {
	PublicKey string `json:"public_key"`
}

func (s *Server) GetVAPIDKey(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.Unimplemented, "push notifications are not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, &vapidKeyResponse{PublicKey: s.vapidEnv.VAPIDPublicKey})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe registers a browser push subscription. Re-registering an
// endpoint returns the existing subscription instead of duplicating it.
func (s *Server) Subscribe(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint and keys are required", nil)
		return
	}

	if existing, err := s.repo.FindByEndpoint(ctx, req.Endpoint); err == nil {
		cerr.SetJSONResponse(ctx, existing)
		return
	}

	sub := &pushsubscription.Subscription{
		ID:        ulid.Make().String(),
		Endpoint:  req.Endpoint,
		P256dhKey: req.Keys.P256dh,
		AuthKey:   req.Keys.Auth,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, sub)
}

func (s *Server) Unsubscribe(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "subscriptionID")
	if _, err := s.repo.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, struct{}{})
}
