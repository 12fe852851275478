package store

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Seed accounts.
const (
	AdminEmail       = "admin@shop.test"
	AdminPassword    = "admin123"
	CustomerEmail    = "customer@shop.test"
	CustomerPassword = "customer123"
)

// seedHashes is computed once per process; Reset reuses it.
var seedHashes = sync.OnceValue(func() map[string]string {
	out := map[string]string{}
	for email, pw := range map[string]string{AdminEmail: AdminPassword, CustomerEmail: CustomerPassword} {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			panic(err)
		}
		out[email] = string(h)
	}
	return out
})

var seedCategories = []Category{
	{Name: "Electronics", Description: "Phones, audio and accessories"},
	{Name: "Books", Description: "Print and reference"},
	{Name: "Home", Description: "Kitchen and living"},
}

// seedProducts reference seedCategories by position, starting at 1.
var seedProducts = []Product{
	{Name: "Wireless Earbuds", Description: "Bluetooth 5.3, 24h battery", SKU: "PROD-001", BasePrice: 2499, StockQty: 40, CategoryID: 1},
	{Name: "USB-C Charger", Description: "65W GaN", SKU: "PROD-002", BasePrice: 1899.5, StockQty: 25, CategoryID: 1},
	{Name: "Go in Practice", Description: "Paperback", SKU: "PROD-003", BasePrice: 799, StockQty: 10, CategoryID: 2},
	{Name: "Cast Iron Pan", Description: "26cm, pre-seasoned", SKU: "PROD-004", BasePrice: 1299, StockQty: 3, CategoryID: 3},
}

// Seed loads the default accounts and catalog. It assumes empty stores.
func (s *MemoryStore) Seed() {
	h := seedHashes()
	_, _ = s.addUser(AdminEmail, h[AdminEmail], "9000000001", "Admin HQ", RoleAdmin)
	_, _ = s.addUser(CustomerEmail, h[CustomerEmail], "9000000002", "12 Market Road", RoleCustomer)
	for _, c := range seedCategories {
		s.CreateCategory(c)
	}
	for _, p := range seedProducts {
		_, _ = s.SaveProduct(0, p)
	}
}
