package crosssale

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/temcen/crosssale/pkg/models"
)

// Bounds on the number of recommendations a single fetch may ask for.
const (
	MinRecommendations = 1
	MaxRecommendations = 100
)

type sexQuery struct {
	Sex          models.ClientSex   `validate:"oneof=Male Female"`
	Number       int                `validate:"rec_count"`
	ProductType  models.ProductType `validate:"oneof=all services products"`
	CurrentItems []uuid.UUID        `validate:"dive,notnil"`
}

type clientQuery struct {
	ClientID     uuid.UUID          `validate:"notnil"`
	Number       int                `validate:"rec_count"`
	ProductType  models.ProductType `validate:"oneof=all services products"`
	CurrentItems []uuid.UUID        `validate:"dive,notnil"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterAlias("rec_count", fmt.Sprintf("min=%d,max=%d", MinRecommendations, MaxRecommendations))
	_ = v.RegisterValidation("notnil", func(fl validator.FieldLevel) bool {
		id, ok := fl.Field().Interface().(uuid.UUID)
		return ok && id != uuid.Nil
	})
	return v
}

func (c *Client) check(query interface{}) error {
	if err := c.validate.Struct(query); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// encodeQuery renders the recommendations query string. The field order is
// part of the wire contract: discriminator, number, proposed_product_type,
// current_items. Values are enum members, integers and UUIDs, none of which
// need escaping, and the comma separator is sent literally.
func encodeQuery(key, value string, number int, productType models.ProductType, items []uuid.UUID) string {
	var sb strings.Builder
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(value)
	sb.WriteString("&number=")
	sb.WriteString(strconv.Itoa(number))
	sb.WriteString("&proposed_product_type=")
	sb.WriteString(string(productType))
	sb.WriteString("&current_items=")
	for i, id := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(id.String())
	}
	return sb.String()
}
