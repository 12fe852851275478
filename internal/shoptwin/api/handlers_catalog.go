package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	"github.com/shopdesk/shopdesk/pkg/twincore"
)

// productView is a product with its category name resolved.
type productView struct {
	store.Product
	CategoryName string `json:"categoryName,omitempty"`
}

func (h *Handler) views(ps []store.Product) []productView {
	out := make([]productView, len(ps))
	for i, p := range ps {
		out[i] = productView{Product: p, CategoryName: h.store.CategoryName(p.CategoryID)}
	}
	return out
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.views(h.store.FindProducts(store.ProductQuery{})))
}

func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := store.ProductQuery{Keyword: r.URL.Query().Get("keyword")}
	twincore.JSON(w, http.StatusOK, h.views(h.store.FindProducts(q)))
}

// FilterProducts handles GET /api/products/filter. Every parameter is
// optional; sort is "asc" or "desc" by price.
func (h *Handler) FilterProducts(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := store.ProductQuery{Keyword: qs.Get("keyword"), Sort: qs.Get("sort")}
	fields := map[string]string{}
	if v := qs.Get("categoryId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fields["categoryId"] = "categoryId must be a number"
		}
		q.CategoryID = id
	}
	for name, dst := range map[string]**float64{"minPrice": &q.MinPrice, "maxPrice": &q.MaxPrice} {
		v := qs.Get(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fields[name] = name + " must be a number"
			continue
		}
		*dst = &f
	}
	if s := strings.ToLower(q.Sort); s != "" && s != "asc" && s != "desc" {
		fields["sort"] = "sort must be asc or desc"
	}
	if len(fields) > 0 {
		twincore.FieldErrors(w, fields)
		return
	}
	twincore.JSON(w, http.StatusOK, h.views(h.store.FindProducts(q)))
}

func (h *Handler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	twincore.JSON(w, http.StatusOK, h.views(h.store.FindProducts(store.ProductQuery{CategoryID: id})))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.store.Product(id)
	if err != nil {
		storeError(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, productView{Product: p, CategoryName: h.store.CategoryName(p.CategoryID)})
}

type productRequest struct {
	Name        string  `json:"productName"`
	Description string  `json:"productDescription"`
	SKU         string  `json:"sku"`
	BasePrice   float64 `json:"basePrice"`
	StockQty    int     `json:"stockQty"`
	CategoryID  int64   `json:"categoryId"`
	Picture     string  `json:"picture"`
}

func (req productRequest) validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["productName"] = "Product name is required"
	}
	if strings.TrimSpace(req.SKU) == "" {
		fields["sku"] = "SKU is required"
	}
	if req.BasePrice <= 0 {
		fields["basePrice"] = "Price must be greater than 0"
	}
	if req.StockQty < 0 {
		fields["stockQty"] = "Stock cannot be negative"
	}
	if req.CategoryID <= 0 {
		fields["categoryId"] = "Category is required"
	}
	return fields
}

func (req productRequest) product() store.Product {
	return store.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		SKU:         strings.TrimSpace(req.SKU),
		Picture:     req.Picture,
		BasePrice:   req.BasePrice,
		StockQty:    req.StockQty,
		CategoryID:  req.CategoryID,
	}
}

func (h *Handler) saveProduct(w http.ResponseWriter, r *http.Request, id int64, status int) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	if fields := req.validate(); len(fields) > 0 {
		twincore.FieldErrors(w, fields)
		return
	}
	p, err := h.store.SaveProduct(id, req.product())
	if err != nil {
		storeError(w, err)
		return
	}
	twincore.JSON(w, status, productView{Product: p, CategoryName: h.store.CategoryName(p.CategoryID)})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, 0, http.StatusCreated)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	h.saveProduct(w, r, id, http.StatusOK)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteProduct(id); err != nil {
		storeError(w, err)
		return
	}
	twincore.Text(w, http.StatusOK, "Product deleted successfully")
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.store.Categories.List())
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req store.Category
	if !decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		twincore.FieldErrors(w, map[string]string{"name": "Category name is required"})
		return
	}
	twincore.JSON(w, http.StatusCreated, h.store.CreateCategory(req))
}
