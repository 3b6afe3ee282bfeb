package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/temcen/crosssale/internal/crosssale"
	"github.com/temcen/crosssale/pkg/models"
)

type queryFlags struct {
	sex         string
	client      string
	items       []string
	number      int
	productType string
	catalog     string
}

var recommendFlags queryFlags

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "List recommendations for the items in a check",
	Long: `List cross-sale recommendations for the items in a check.

Give either --sex for an anonymous client or --client for a known one.

Examples:
  crosssale recommend --sex Female --items 3f0e...,9a41... --number 5
  crosssale recommend --client 7c1d... --type services --catalog products.yaml`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	recommendFlags.register(recommendCmd)
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sex, "sex", "", "client sex (Male, Female)")
	cmd.Flags().StringVar(&f.client, "client", "", "client identifier")
	cmd.Flags().StringSliceVarP(&f.items, "items", "i", nil, "product identifiers already in the check")
	cmd.Flags().IntVarP(&f.number, "number", "n", 5, "maximum number of recommendations")
	cmd.Flags().StringVarP(&f.productType, "type", "t", string(models.ProductTypeAll), "proposed product type (all, services, products)")
	cmd.Flags().StringVar(&f.catalog, "catalog", "", "YAML file with product names and descriptions")
}

func (f *queryFlags) currentItems() ([]uuid.UUID, error) {
	items := make([]uuid.UUID, 0, len(f.items))
	for _, raw := range f.items {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid item %q: %w", raw, err)
		}
		items = append(items, id)
	}
	return items, nil
}

func (f *queryFlags) loadCatalog() (*Catalog, error) {
	if f.catalog == "" {
		return nil, nil
	}
	return LoadCatalog(f.catalog)
}

// fetch asks the service by client identifier when one is given, otherwise by
// sex.
func (f *queryFlags) fetch(ctx context.Context, client *crosssale.Client) ([]models.RecommendationRecord, error) {
	items, err := f.currentItems()
	if err != nil {
		return nil, err
	}
	productType := models.ProductType(f.productType)

	if f.client != "" {
		id, err := uuid.Parse(f.client)
		if err != nil {
			return nil, fmt.Errorf("invalid client %q: %w", f.client, err)
		}
		return client.FetchByClientID(ctx, id, items, f.number, productType)
	}
	if f.sex == "" {
		return nil, errors.New("one of --sex or --client is required")
	}
	return client.FetchByClientSex(ctx, models.ClientSex(f.sex), items, f.number, productType)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	if recommendFlags.sex != "" && recommendFlags.client != "" {
		return errors.New("--sex and --client are mutually exclusive")
	}

	catalog, err := recommendFlags.loadCatalog()
	if err != nil {
		return err
	}

	records, err := recommendFlags.fetch(context.Background(), newClient())
	if err != nil {
		return fmt.Errorf("fetch recommendations: %w", err)
	}

	out := cmd.OutOrStdout()
	infos := catalog.ProductInfos(records)
	shown := 0
	for _, info := range infos {
		if !info.Displayable() {
			continue
		}
		shown++
		fmt.Fprintf(out, "%2d. %-32s %5.1f%%  %s\n", shown, DisplayName(info.Name), info.Certainty*100, info.RecommendedProductID)
		if info.Description != "" {
			fmt.Fprintf(out, "    %s\n", DisplayDescription(info.Description))
		}
	}

	if shown == 0 {
		fmt.Fprintln(out, "No recommendations.")
	}
	return nil
}
