package console

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProductsPage lists, shows and edits products.
type ProductsPage struct {
	api    API
	logger *slog.Logger
	list   Page[[]Product]
	detail Page[Product]
}

func sortProducts(ps []Product) {
	slices.SortStableFunc(ps, func(a, b Product) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

func (p *ProductsPage) fetchList(ctx context.Context, path string, sorted bool) View[[]Product] {
	return p.list.Mount(ctx, func(ctx context.Context) View[[]Product] {
		var ps []Product
		if err := p.api.Get(ctx, path, &ps); err != nil {
			return failed[[]Product](err, "Failed to fetch products")
		}
		if sorted {
			sortProducts(ps)
		}
		return populated(ps, len(ps) == 0)
	})
}

// List returns every product, sorted by name.
func (p *ProductsPage) List(ctx context.Context) View[[]Product] {
	return p.fetchList(ctx, "/api/products", true)
}

// Search matches product names containing keyword.
func (p *ProductsPage) Search(ctx context.Context, keyword string) View[[]Product] {
	return p.fetchList(ctx, "/api/products/search?"+url.Values{"keyword": {keyword}}.Encode(), true)
}

// ByCategory lists the products of one category.
func (p *ProductsPage) ByCategory(ctx context.Context, categoryID int64) View[[]Product] {
	return p.fetchList(ctx, fmt.Sprintf("/api/products/category/%d", categoryID), true)
}

// Filter narrows the catalog. Zero fields are left out of the query. Sort
// is "asc" or "desc" by price; without it results are sorted by name.
type Filter struct {
	Keyword    string   `json:"keyword,omitempty"`
	CategoryID int64    `json:"categoryId,omitempty"`
	MinPrice   *float64 `json:"minPrice,omitempty"`
	MaxPrice   *float64 `json:"maxPrice,omitempty"`
	Sort       string   `json:"sort,omitempty"`
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.Keyword != "" {
		q.Set("keyword", f.Keyword)
	}
	if f.CategoryID > 0 {
		q.Set("categoryId", strconv.FormatInt(f.CategoryID, 10))
	}
	if f.MinPrice != nil {
		q.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.Sort != "" {
		q.Set("sort", strings.ToLower(f.Sort))
	}
	return q
}

// Filter lists the products matching f.
func (p *ProductsPage) Filter(ctx context.Context, f Filter) View[[]Product] {
	return p.fetchList(ctx, "/api/products/filter?"+f.query().Encode(), f.Sort == "")
}

// Show returns one product.
func (p *ProductsPage) Show(ctx context.Context, id int64) View[Product] {
	return p.detail.Mount(ctx, func(ctx context.Context) View[Product] {
		var prod Product
		if err := p.api.Get(ctx, fmt.Sprintf("/api/products/%d", id), &prod); err != nil {
			return failed[Product](err, "Product not found")
		}
		return populated(prod, false)
	})
}

// ProductForm holds the raw form input for creating or editing a product.
type ProductForm struct {
	Name        string
	Description string
	SKU         string
	Price       string
	StockQty    string
	CategoryID  string
	Picture     string
}

// FormFromProduct pre-fills the edit form.
func FormFromProduct(p Product) ProductForm {
	f := ProductForm{
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		Price:       strconv.FormatFloat(p.Price, 'f', -1, 64),
		StockQty:    strconv.Itoa(p.StockQty),
		Picture:     p.Picture,
	}
	if p.CategoryID > 0 {
		f.CategoryID = strconv.FormatInt(p.CategoryID, 10)
	}
	return f
}

type productRequest struct {
	Name        string  `json:"productName"`
	Description *string `json:"productDescription"`
	SKU         string  `json:"sku"`
	Price       float64 `json:"basePrice"`
	StockQty    int     `json:"stockQty"`
	CategoryID  int64   `json:"categoryId"`
	Picture     *string `json:"picture"`
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// validate checks the form and builds the request body.
func (f ProductForm) validate() (productRequest, FieldErrors) {
	errs := FieldErrors{}
	req := productRequest{
		Name:        strings.TrimSpace(f.Name),
		Description: optional(f.Description),
		SKU:         strings.TrimSpace(f.SKU),
		Picture:     optional(f.Picture),
	}
	if req.Name == "" {
		errs["name"] = "Product name is required"
	}
	if req.SKU == "" {
		errs["sku"] = "SKU is required"
	}

	switch price := strings.TrimSpace(f.Price); {
	case price == "":
		errs["price"] = "Price is required"
	default:
		v, err := strconv.ParseFloat(price, 64)
		switch {
		case err != nil:
			errs["price"] = "Price must be a number"
		case v <= 0:
			errs["price"] = "Price must be greater than 0"
		default:
			req.Price = v
		}
	}

	if cat := strings.TrimSpace(f.CategoryID); cat == "" {
		errs["category"] = "Category is required"
	} else if v, err := strconv.ParseInt(cat, 10, 64); err != nil || v <= 0 {
		errs["category"] = "Category must be a valid category id"
	} else {
		req.CategoryID = v
	}

	if stock := strings.TrimSpace(f.StockQty); stock != "" {
		v, err := strconv.Atoi(stock)
		if err != nil || v < 0 {
			errs["stock"] = "Stock must be a whole number of 0 or more"
		} else {
			req.StockQty = v
		}
	}

	if len(errs) > 0 {
		return req, errs
	}
	return req, nil
}

// NewProduct is the data the new-product form mounts with.
type NewProduct struct {
	Categories []Category
	Form       ProductForm
}

// PrepareNew loads categories and products in parallel and suggests the
// next SKU. A failed load leaves the form usable without suggestions.
func (p *ProductsPage) PrepareNew(ctx context.Context) NewProduct {
	var (
		cats  []Category
		prods []Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.api.Get(gctx, "/api/categories", &cats) })
	g.Go(func() error { return p.api.Get(gctx, "/api/products", &prods) })
	if err := g.Wait(); err != nil {
		p.logger.Warn("loading new product form", "err", err)
		return NewProduct{}
	}
	sortCategories(cats)
	return NewProduct{Categories: cats, Form: ProductForm{SKU: NextSKU(prods)}}
}

// EditProduct is the data the edit form mounts with.
type EditProduct struct {
	Product    Product
	Categories []Category
	Form       ProductForm
}

// PrepareEdit loads the product and categories in parallel. Only the
// product is required; a category failure is logged and the list left
// empty.
func (p *ProductsPage) PrepareEdit(ctx context.Context, id int64) (EditProduct, error) {
	var (
		out  EditProduct
		cats []Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.api.Get(gctx, "/api/categories", &cats); err != nil {
			p.logger.Warn("loading categories for edit", "err", err)
			cats = nil
		}
		return nil
	})
	g.Go(func() error {
		return p.api.Get(gctx, fmt.Sprintf("/api/products/%d", id), &out.Product)
	})
	if err := g.Wait(); err != nil {
		return EditProduct{}, &SubmitError{
			Message: "Failed to load product: " + readError(err, "unknown error"),
			Err:     err,
		}
	}
	sortCategories(cats)
	out.Categories = cats
	out.Form = FormFromProduct(out.Product)
	return out, nil
}

// Create adds a product.
func (p *ProductsPage) Create(ctx context.Context, f ProductForm) (Product, Outcome, error) {
	req, errs := f.validate()
	if errs != nil {
		return Product{}, Outcome{}, invalid(errs)
	}
	var created Product
	if err := p.api.Post(ctx, "/api/products", req, &created); err != nil {
		return Product{}, Outcome{}, submitFailed(err, "Failed to add product")
	}
	return created, Outcome{Notice: "Product added successfully", Next: "products", Delay: 1200 * time.Millisecond}, nil
}

// Update replaces a product.
func (p *ProductsPage) Update(ctx context.Context, id int64, f ProductForm) (Product, Outcome, error) {
	req, errs := f.validate()
	if errs != nil {
		return Product{}, Outcome{}, invalid(errs)
	}
	var updated Product
	if err := p.api.Put(ctx, fmt.Sprintf("/api/products/%d", id), req, &updated); err != nil {
		return Product{}, Outcome{}, submitFailed(err, "Failed to update product")
	}
	return updated, Outcome{
		Notice: "Product updated successfully",
		Next:   fmt.Sprintf("products/%d", id),
		Delay:  1200 * time.Millisecond,
	}, nil
}

// Delete removes a product.
func (p *ProductsPage) Delete(ctx context.Context, id int64) (Outcome, error) {
	if err := p.api.Delete(ctx, fmt.Sprintf("/api/products/%d", id), nil); err != nil {
		return Outcome{}, submitFailed(err, "Failed to delete product")
	}
	return Outcome{Notice: fmt.Sprintf("Product %d deleted", id), Next: "products"}, nil
}
