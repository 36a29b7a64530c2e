// internal/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ProductFile references the downloadable artifact for a product.
type ProductFile struct {
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// LicenseTerms describe what an activation key unlocks.
type LicenseTerms struct {
	DurationMonths   int `json:"duration_months"` // 0 means perpetual
	MaxInstallations int `json:"max_installations"`
}

type Product struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Price         float64      `json:"price"`
	Currency      string       `json:"currency"`
	Version       string       `json:"version"`
	Requirements  string       `json:"requirements"`
	Features      []string     `json:"features"`
	File          ProductFile  `json:"file"`
	License       LicenseTerms `json:"license"`
	DownloadLimit int          `json:"download_limit"` // <= 0 means unlimited
	Active        bool         `json:"active"`
}

// PublicView strips the file reference before a product leaves the API.
func (p Product) PublicView() map[string]interface{} {
	return map[string]interface{}{
		"id":           p.ID,
		"name":         p.Name,
		"description":  p.Description,
		"price":        p.Price,
		"currency":     p.Currency,
		"version":      p.Version,
		"requirements": p.Requirements,
		"features":     p.Features,
		"file_size":    p.File.Size,
	}
}

// Catalog is an immutable product lookup, loaded once at startup.
type Catalog struct {
	products map[string]Product
}

// Load reads product definitions from path, or falls back to the
// built-in defaults when path is empty.
func Load(path string) (*Catalog, error) {
	products := defaultProducts()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}

		var loaded []Product
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse catalog file: %w", err)
		}

		products = make(map[string]Product, len(loaded))
		for _, p := range loaded {
			if p.ID == "" {
				return nil, fmt.Errorf("catalog entry without id")
			}
			if _, exists := products[p.ID]; exists {
				return nil, fmt.Errorf("duplicate catalog entry: %s", p.ID)
			}
			products[p.ID] = p
		}
	}

	logrus.WithField("products", len(products)).Info("Product catalog loaded")
	return &Catalog{products: products}, nil
}

// Get returns the product and whether it exists and is active.
func (c *Catalog) Get(id string) (Product, bool) {
	p, ok := c.products[id]
	if !ok || !p.Active {
		return Product{}, false
	}
	return p, true
}

// List returns all active products.
func (c *Catalog) List() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

func defaultProducts() map[string]Product {
	products := []Product{
		{
			ID:           "guardian_basic",
			Name:         "Gotcha Guardian Basic",
			Description:  "Basic edition with essential protection features",
			Price:        29.99,
			Currency:     "USD",
			Version:      "2.0.0",
			Requirements: "Windows 10+, 4GB RAM",
			Features: []string{
				"Real-time protection",
				"Basic scanning",
				"Email support",
			},
			File: ProductFile{
				Key:  "releases/guardian_basic.zip",
				Size: 15938355,
			},
			License:       LicenseTerms{DurationMonths: 12, MaxInstallations: 1},
			DownloadLimit: 5,
			Active:        true,
		},
		{
			ID:           "guardian_pro",
			Name:         "Gotcha Guardian Pro",
			Description:  "Professional edition with advanced features",
			Price:        59.99,
			Currency:     "USD",
			Version:      "2.0.0",
			Requirements: "Windows 10+, 8GB RAM",
			Features: []string{
				"Advanced real-time protection",
				"Deep scanning",
				"Behavioral analysis",
				"Priority support",
				"Automatic updates",
			},
			File: ProductFile{
				Key:  "releases/guardian_pro.zip",
				Size: 29884416,
			},
			License:       LicenseTerms{DurationMonths: 12, MaxInstallations: 3},
			DownloadLimit: 10,
			Active:        true,
		},
		{
			ID:           "guardian_enterprise",
			Name:         "Gotcha Guardian Enterprise",
			Description:  "Enterprise solution for businesses",
			Price:        199.99,
			Currency:     "USD",
			Version:      "2.0.0",
			Requirements: "Windows Server 2016+, 16GB RAM",
			Features: []string{
				"All Pro features",
				"Centralized management",
				"Multi-device licensing",
				"Custom policies",
				"Dedicated support",
				"API access",
			},
			File: ProductFile{
				Key:  "releases/guardian_enterprise.zip",
				Size: 48024781,
			},
			License:       LicenseTerms{DurationMonths: 0, MaxInstallations: 50},
			DownloadLimit: -1, // unlimited
			Active:        true,
		},
	}

	out := make(map[string]Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}
