package normalizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	xhttp "PriceFusion/pkg/http"
	"PriceFusion/pkg/util"
)

// ErrEmptyName is returned when the name has no letters or digits.
var ErrEmptyName = errors.New("normalizer: empty product name")

var (
	_ domrepo.ProductNormalizer = (*Canonical)(nil)
	_ domrepo.ProductNormalizer = (*HTTPNormalizer)(nil)
)

// Canonical maps a free-text name to its canonical key. Names that are
// already canonical get confidence 1; anything that had to be rewritten gets
// a lower score.
type Canonical struct {
	// Aliases maps canonical keys to a preferred key, e.g. "domates" -> "tomato".
	Aliases map[string]string
}

func NewCanonical(aliases map[string]string) *Canonical {
	return &Canonical{Aliases: aliases}
}

func (c *Canonical) Normalize(_ context.Context, name string) (models.NormalizedProduct, error) {
	key := util.CanonicalKey(name)
	if key == "" {
		return models.NormalizedProduct{}, ErrEmptyName
	}
	confidence := 1.0
	if key != name {
		confidence = 0.9
	}
	if alias, ok := c.Aliases[key]; ok && alias != "" {
		key = alias
		confidence = 0.8
	}
	return models.NormalizedProduct{
		ProductKey:  key,
		DisplayName: strings.Join(strings.Fields(name), " "),
		Confidence:  confidence,
	}, nil
}

// HTTPNormalizer asks an external service and falls back to Canonical when
// the service is unreachable.
type HTTPNormalizer struct {
	url      string
	client   *xhttp.Client
	fallback domrepo.ProductNormalizer
}

func NewHTTPNormalizer(url string, timeout time.Duration, fallback domrepo.ProductNormalizer) *HTTPNormalizer {
	if fallback == nil {
		fallback = NewCanonical(nil)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPNormalizer{url: url, client: xhttp.NewClient(xhttp.WithTimeout(timeout)), fallback: fallback}
}

func (n *HTTPNormalizer) Normalize(ctx context.Context, name string) (models.NormalizedProduct, error) {
	if strings.TrimSpace(name) == "" {
		return models.NormalizedProduct{}, ErrEmptyName
	}
	var out models.NormalizedProduct
	err := n.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    n.url,
		Body:   map[string]string{"name": name},
	}, &out)
	if err == nil && out.ProductKey != "" {
		return out, nil
	}
	res, ferr := n.fallback.Normalize(ctx, name)
	if ferr != nil {
		if err != nil {
			return res, fmt.Errorf("normalize %q: %w", name, errors.Join(err, ferr))
		}
		return res, ferr
	}
	return res, nil
}
