package console

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductListSortedByName(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/products", `[
		{"productId": 1, "productName": "toaster"},
		{"productId": 2, "productName": "Apron"},
		{"productId": 3, "productName": "kettle"}
	]`)

	v := c.Products.List(context.Background())
	require.Equal(t, Populated, v.State)
	var names []string
	for _, p := range v.Data {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Apron", "kettle", "toaster"}, names)
}

func TestProductListEmptyIsNotAnError(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/products", `[]`)

	v := c.Products.List(context.Background())
	assert.Equal(t, Empty, v.State)
	assert.Empty(t, v.Err)
}

func TestProductListUnauthorizedShowsSessionExpired(t *testing.T) {
	c, api, _ := newTestConsole()
	api.fail("GET", "/api/products", http.StatusUnauthorized, `{"error":"bad token"}`)

	v := c.Products.List(context.Background())
	assert.Equal(t, Failed, v.State)
	assert.Equal(t, SessionExpired, v.Err)
}

func TestProductListServerMessage(t *testing.T) {
	c, api, _ := newTestConsole()
	api.fail("GET", "/api/products", http.StatusInternalServerError, `{"message":"db down"}`)
	assert.Equal(t, "db down", c.Products.List(context.Background()).Err)

	api.fail("GET", "/api/products", http.StatusBadGateway, ``)
	assert.Equal(t, "Failed to fetch products", c.Products.List(context.Background()).Err)
}

func TestProductFilterQuery(t *testing.T) {
	c, api, _ := newTestConsole()
	minPrice := 10.0
	api.on("GET", "/api/products/filter?categoryId=2&keyword=mug&minPrice=10&sort=desc", `[
		{"productId": 1, "productName": "B", "basePrice": 30},
		{"productId": 2, "productName": "A", "basePrice": 20}
	]`)

	v := c.Products.Filter(context.Background(), Filter{Keyword: "mug", CategoryID: 2, MinPrice: &minPrice, Sort: "DESC"})
	require.Equal(t, Populated, v.State)
	assert.Equal(t, "B", v.Data[0].Name, "server price order is kept when sorting")
}

func TestProductShowNotFound(t *testing.T) {
	c, _, _ := newTestConsole()
	v := c.Products.Show(context.Background(), 99)
	assert.Equal(t, Failed, v.State)
	assert.Equal(t, "no route", v.Err)
}

func TestProductFormValidation(t *testing.T) {
	tests := []struct {
		name  string
		form  ProductForm
		field string
		msg   string
	}{
		{"missing name", ProductForm{SKU: "S", Price: "1", CategoryID: "1"}, "name", "Product name is required"},
		{"missing sku", ProductForm{Name: "N", Price: "1", CategoryID: "1"}, "sku", "SKU is required"},
		{"missing price", ProductForm{Name: "N", SKU: "S", CategoryID: "1"}, "price", "Price is required"},
		{"zero price", ProductForm{Name: "N", SKU: "S", Price: "0", CategoryID: "1"}, "price", "Price must be greater than 0"},
		{"text price", ProductForm{Name: "N", SKU: "S", Price: "abc", CategoryID: "1"}, "price", "Price must be a number"},
		{"missing category", ProductForm{Name: "N", SKU: "S", Price: "1"}, "category", "Category is required"},
		{"negative stock", ProductForm{Name: "N", SKU: "S", Price: "1", CategoryID: "1", StockQty: "-1"}, "stock", "Stock must be a whole number of 0 or more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := tt.form.validate()
			require.NotNil(t, errs)
			assert.Equal(t, tt.msg, errs[tt.field])
		})
	}

	req, errs := ProductForm{Name: " Mug ", SKU: "M-1", Price: "99.5", CategoryID: "3"}.validate()
	require.Nil(t, errs)
	assert.Equal(t, "Mug", req.Name)
	assert.Equal(t, 0, req.StockQty, "blank stock defaults to 0")
	assert.Nil(t, req.Description)
}

func TestProductCreateKeepsFormOnValidationFailure(t *testing.T) {
	c, api, _ := newTestConsole()
	form := ProductForm{Name: "Mug", SKU: "M-1", Price: "0", CategoryID: "1"}

	_, _, err := c.Products.Create(context.Background(), form)
	var serr *SubmitError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "Price must be greater than 0", serr.Fields["price"])
	assert.Zero(t, api.called("POST", "/api/products"), "invalid forms never reach the backend")
}

func TestProductCreate(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("POST", "/api/products", `{"productId": 9, "productName": "Mug"}`)

	p, out, err := c.Products.Create(context.Background(), ProductForm{Name: "Mug", SKU: "M-1", Price: "99", CategoryID: "1", StockQty: "5"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.ID)
	assert.Equal(t, "products", out.Next)
	assert.Equal(t, 1200, int(out.Delay.Milliseconds()))

	body, ok := api.body("POST", "/api/products").(productRequest)
	require.True(t, ok)
	assert.Equal(t, 5, body.StockQty)
	assert.Equal(t, int64(1), body.CategoryID)
}

func TestProductCreateServerFieldErrors(t *testing.T) {
	c, api, _ := newTestConsole()
	api.fail("POST", "/api/products", http.StatusBadRequest, `{"sku":"must be unique","productName":"too long"}`)

	_, _, err := c.Products.Create(context.Background(), ProductForm{Name: "Mug", SKU: "M-1", Price: "9", CategoryID: "1"})
	require.Error(t, err)
	assert.Equal(t, "productName: too long, sku: must be unique", err.Error())
}

func TestPrepareNewSuggestsSKU(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/categories", `[{"categoryId": 2, "name": "toys"}, {"categoryId": 1, "name": "Books"}]`)
	api.on("GET", "/api/products", `[{"productId": 4}, {"productId": 11}]`)

	np := c.Products.PrepareNew(context.Background())
	assert.Equal(t, "PROD-012", np.Form.SKU)
	require.Len(t, np.Categories, 2)
	assert.Equal(t, "Books", np.Categories[0].Name)
}

func TestPrepareEditToleratesCategoryFailure(t *testing.T) {
	c, api, _ := newTestConsole()
	api.fail("GET", "/api/categories", http.StatusInternalServerError, ``)
	api.on("GET", "/api/products/4", `{"productId": 4, "productName": "Mug", "basePrice": 12.5, "stockQty": 3, "categoryId": 1}`)

	ep, err := c.Products.PrepareEdit(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, ep.Categories)
	assert.Equal(t, ProductForm{Name: "Mug", Price: "12.5", StockQty: "3", CategoryID: "1"}, ep.Form)

	_, err = c.Products.PrepareEdit(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to load product")
}

func TestProductUpdateAndDelete(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("PUT", "/api/products/4", `{"productId": 4, "productName": "Mug 2"}`)
	api.on("DELETE", "/api/products/4", ``)

	p, out, err := c.Products.Update(context.Background(), 4, ProductForm{Name: "Mug 2", SKU: "M", Price: "1", CategoryID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "Mug 2", p.Name)
	assert.Equal(t, "products/4", out.Next)

	_, err = c.Products.Delete(context.Background(), 4)
	require.NoError(t, err)

	api.fail("DELETE", "/api/products/5", http.StatusForbidden, ``)
	_, err = c.Products.Delete(context.Background(), 5)
	assert.EqualError(t, err, "Failed to delete product")
}
