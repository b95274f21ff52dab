package handler

import (
	"net/http"

	"github.com/daymark-app/daymark/internal/push"
)

// VAPIDHandler serves the public VAPID key the browser needs to create
// a push subscription.
type VAPIDHandler struct {
	service *push.Service
}

func NewVAPIDHandler(svc *push.Service) *VAPIDHandler {
	return &VAPIDHandler{service: svc}
}

// Key handles GET /user/vapid-key.
func (h *VAPIDHandler) Key(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}
