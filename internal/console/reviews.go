package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopdesk/shopdesk/internal/client"
)

// ReviewsPage lists and adds product reviews. Reviews are append-only.
type ReviewsPage struct {
	api  API
	list Page[[]Review]
}

const reviewsFailed = "Failed to fetch reviews. Check Product ID."

// List returns a product's reviews. Any failure other than an expired
// session reads as a bad product id.
func (r *ReviewsPage) List(ctx context.Context, productID int64) View[[]Review] {
	return r.list.Mount(ctx, func(ctx context.Context) View[[]Review] {
		if productID <= 0 {
			return View[[]Review]{State: Failed, Err: reviewsFailed}
		}
		var rs []Review
		if err := r.api.Get(ctx, fmt.Sprintf("/api/reviews/%d", productID), &rs); err != nil {
			if errors.Is(err, client.ErrUnauthorized) {
				return View[[]Review]{State: Failed, Err: SessionExpired}
			}
			return View[[]Review]{State: Failed, Err: reviewsFailed}
		}
		return populated(rs, len(rs) == 0)
	})
}

// ReviewForm is the raw input for a review of one product.
type ReviewForm struct {
	ProductID int64
	Rating    int
	Comment   string
}

func (f ReviewForm) validate() (Review, FieldErrors) {
	errs := FieldErrors{}
	rev := Review{ProductID: f.ProductID, Rating: f.Rating, Comment: strings.TrimSpace(f.Comment)}
	if rev.ProductID <= 0 {
		errs["productId"] = "Product ID is required"
	}
	if rev.Rating < 1 || rev.Rating > 5 {
		errs["rating"] = "Rating must be between 1 and 5"
	}
	if rev.Comment == "" {
		errs["comment"] = "Comment is required"
	}
	if len(errs) > 0 {
		return rev, errs
	}
	return rev, nil
}

// Add posts a review for the signed-in user.
func (r *ReviewsPage) Add(ctx context.Context, f ReviewForm) (Outcome, error) {
	rev, errs := f.validate()
	if errs != nil {
		return Outcome{}, invalid(errs)
	}
	var ack string
	if err := r.api.Post(ctx, "/api/reviews", rev, &ack); err != nil {
		return Outcome{}, submitFailed(err, "Failed to add review")
	}
	return Outcome{Notice: "Review added"}, nil
}
