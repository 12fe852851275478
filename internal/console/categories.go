package console

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// CategoriesPage lists and creates categories.
type CategoriesPage struct {
	api  API
	list Page[[]Category]
}

func sortCategories(cs []Category) {
	slices.SortStableFunc(cs, func(a, b Category) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

// List returns all categories sorted by name.
func (c *CategoriesPage) List(ctx context.Context) View[[]Category] {
	return c.list.Mount(ctx, func(ctx context.Context) View[[]Category] {
		var cs []Category
		if err := c.api.Get(ctx, "/api/categories", &cs); err != nil {
			return failed[[]Category](err, "Failed to fetch categories")
		}
		sortCategories(cs)
		return populated(cs, len(cs) == 0)
	})
}

// CategoryForm is the raw input for a new category. Only Name is required.
type CategoryForm struct {
	Name        string
	Description string
	Picture     string
}

// Create adds a category.
func (c *CategoriesPage) Create(ctx context.Context, f CategoryForm) (Category, Outcome, error) {
	req := Category{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		Picture:     strings.TrimSpace(f.Picture),
	}
	if req.Name == "" {
		return Category{}, Outcome{}, invalid(FieldErrors{"name": "Category name is required"})
	}
	var created Category
	if err := c.api.Post(ctx, "/api/categories", req, &created); err != nil {
		return Category{}, Outcome{}, submitFailed(err, "Failed to create category")
	}
	return created, Outcome{Notice: fmt.Sprintf("Category %q created", created.Name)}, nil
}
