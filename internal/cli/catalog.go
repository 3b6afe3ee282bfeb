package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/temcen/crosssale/pkg/models"
)

// CatalogProduct is how a product is shown on screen.
type CatalogProduct struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
}

// Catalog maps product identifiers to display data. A nil Catalog falls back
// to the identifier as the name.
//
//	products:
//	  3f0e...: {name: Gift wrap, description: Paper and ribbon}
type Catalog struct {
	Products map[uuid.UUID]CatalogProduct `yaml:"products"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var raw struct {
		Products map[string]CatalogProduct `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	catalog := &Catalog{Products: make(map[uuid.UUID]CatalogProduct, len(raw.Products))}
	for key, product := range raw.Products {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("parse catalog: product %q: %w", key, err)
		}
		catalog.Products[id] = product
	}
	return catalog, nil
}

// ProductInfo joins a recommendation with its display data. Products missing
// from a loaded catalog get no name and are therefore not displayed.
func (c *Catalog) ProductInfo(rec models.RecommendationRecord) models.ProductInfo {
	info := models.ProductInfo{
		Certainty:            rec.Certainty,
		OriginalProductID:    rec.SelectedProduct,
		RecommendedProductID: rec.ProposedProduct,
	}

	if c == nil {
		info.Name = rec.ProposedProduct.String()
		return info
	}

	if product, ok := c.Products[rec.ProposedProduct]; ok {
		info.Name = product.Name
		info.Description = product.Description
		if product.Icon != "" {
			info.Icon = product.Icon
		}
	}
	return info
}

func (c *Catalog) ProductInfos(records []models.RecommendationRecord) []models.ProductInfo {
	infos := make([]models.ProductInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, c.ProductInfo(rec))
	}
	return infos
}
