package api

import (
	"net/http"
	"strings"

	"github.com/shopdesk/shopdesk/pkg/twincore"
)

type reviewView struct {
	ProductID int64  `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	UserEmail string `json:"userEmail"`
	CreatedAt string `json:"createdAt"`
}

// ListReviews handles GET /api/reviews/{productId}. An unknown product is
// an error rather than an empty list.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "productId")
	if !ok {
		return
	}
	if _, err := h.store.Product(id); err != nil {
		storeError(w, err)
		return
	}
	out := []reviewView{}
	for _, rv := range h.store.ReviewsFor(id) {
		u, _ := h.store.Users.Get(rv.UserID)
		out = append(out, reviewView{
			ProductID: rv.ProductID,
			Rating:    rv.Rating,
			Comment:   rv.Comment,
			UserEmail: u.Email,
			CreatedAt: localTime(rv.CreatedAt),
		})
	}
	twincore.JSON(w, http.StatusOK, out)
}

type reviewRequest struct {
	ProductID int64  `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	req.Comment = strings.TrimSpace(req.Comment)
	fields := map[string]string{}
	if req.ProductID <= 0 {
		fields["productId"] = "Product ID is required"
	}
	if req.Rating < 1 || req.Rating > 5 {
		fields["rating"] = "Rating must be between 1 and 5"
	}
	if req.Comment == "" {
		fields["comment"] = "Comment is required"
	}
	if len(fields) > 0 {
		twincore.FieldErrors(w, fields)
		return
	}
	if _, err := h.store.AddReview(currentUser(r).ID, req.ProductID, req.Rating, req.Comment); err != nil {
		storeError(w, err)
		return
	}
	twincore.Text(w, http.StatusOK, "Review added successfully")
}
