package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrDuplicateName = fmt.Errorf("%w: name already in use", ErrValidation)
	ErrNotFound      = errors.New("catalog entry not found")
	ErrInUse         = fmt.Errorf("%w: category still has products", ErrValidation)
)

// Store persists categories and products. DecrementStock must apply a given order's lines at
// most once.
type Store interface {
	Categories(ctx context.Context) ([]Category, error)
	Category(ctx context.Context, id string) (Category, error)
	SaveCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id string) error

	Products(ctx context.Context, categoryID string) ([]Product, error)
	Product(ctx context.Context, id string) (Product, error)
	SaveProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error

	DecrementStock(ctx context.Context, orderID string, lines []StockLine) error
}

// Cache is a byte cache keyed by string. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	keyCategories  = "catalog:categories"
	keyProductsAll = "catalog:products:all"
)

func keyProducts(categoryID string) string { return "catalog:products:" + categoryID }
func keyProduct(id string) string          { return "catalog:product:" + id }

// Conf is the catalog service. Reads go through the cache; every write invalidates the keys
// it affects before returning.
type Conf struct {
	store    Store
	cache    Cache
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
}

func NewConf(store Store, cache Cache, ttl time.Duration) (*Conf, error) {
	if store == nil {
		return nil, fmt.Errorf("catalog store is nil")
	}
	if cache == nil {
		cache = noCache{}
	}
	return &Conf{store: store, cache: cache, ttl: ttl, validate: validator.New(), now: time.Now}, nil
}

// cached returns the value under key, loading and storing it on a miss. Cache failures fall
// through to the store.
func cached[T any](ctx context.Context, c *Conf, key string, load func() (T, error)) (T, error) {
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logCacheError(ctx, "cache read failed", key, err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logCacheError(ctx, "cache write failed", key, err)
		}
	}
	return v, nil
}

func (c *Conf) invalidate(ctx context.Context, keys ...string) {
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logCacheError(ctx, "cache invalidation failed", strings.Join(keys, ","), err)
	}
}

func (c *Conf) logCacheError(ctx context.Context, msg, key string, err error) {
	slog.Warn(msg,
		slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
		slog.String("Key", key),
		slog.String(logkey.ERROR, err.Error()))
}

func (c *Conf) validationError(err error) error {
	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}

func (c *Conf) ListCategories(ctx context.Context) ([]Category, error) {
	return cached(ctx, c, keyCategories, func() ([]Category, error) {
		return c.store.Categories(ctx)
	})
}

func (c *Conf) GetCategory(ctx context.Context, id string) (Category, error) {
	return c.store.Category(ctx, id)
}

func (c *Conf) CreateCategory(ctx context.Context, in NewCategory) (Category, error) {
	if err := c.validate.Struct(in); err != nil {
		return Category{}, c.validationError(err)
	}
	if err := c.ensureCategoryNameFree(ctx, in.Name, ""); err != nil {
		return Category{}, err
	}
	now := c.now().UTC()
	cat := Category{
		ID:        uuid.NewString(),
		Name:      strings.Join(strings.Fields(in.Name), " "),
		Slug:      Slugify(in.Name),
		ImageURL:  in.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.SaveCategory(ctx, cat); err != nil {
		return Category{}, err
	}
	c.invalidate(ctx, keyCategories)
	return cat, nil
}

func (c *Conf) UpdateCategory(ctx context.Context, id string, in NewCategory) (Category, error) {
	if err := c.validate.Struct(in); err != nil {
		return Category{}, c.validationError(err)
	}
	cat, err := c.store.Category(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if err := c.ensureCategoryNameFree(ctx, in.Name, id); err != nil {
		return Category{}, err
	}
	cat.Name = strings.Join(strings.Fields(in.Name), " ")
	cat.Slug = Slugify(in.Name)
	cat.ImageURL = in.ImageURL
	cat.UpdatedAt = c.now().UTC()
	if err := c.store.SaveCategory(ctx, cat); err != nil {
		return Category{}, err
	}
	c.invalidate(ctx, keyCategories)
	return cat, nil
}

// DeleteCategory refuses to remove a category that still has products.
func (c *Conf) DeleteCategory(ctx context.Context, id string) error {
	products, err := c.store.Products(ctx, id)
	if err != nil {
		return err
	}
	if len(products) > 0 {
		return ErrInUse
	}
	if err := c.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, keyCategories, keyProducts(id))
	return nil
}

func (c *Conf) ensureCategoryNameFree(ctx context.Context, name, exceptID string) error {
	all, err := c.store.Categories(ctx)
	if err != nil {
		return err
	}
	want := NormalizeName(name)
	for _, cat := range all {
		if cat.ID != exceptID && NormalizeName(cat.Name) == want {
			return fmt.Errorf("%w: category %q", ErrDuplicateName, cat.Name)
		}
	}
	return nil
}

// ListProducts returns every product, or only those of categoryID when it is set.
func (c *Conf) ListProducts(ctx context.Context, categoryID string) ([]Product, error) {
	key := keyProductsAll
	if categoryID != "" {
		key = keyProducts(categoryID)
	}
	return cached(ctx, c, key, func() ([]Product, error) {
		return c.store.Products(ctx, categoryID)
	})
}

func (c *Conf) GetProduct(ctx context.Context, id string) (Product, error) {
	return cached(ctx, c, keyProduct(id), func() (Product, error) {
		return c.store.Product(ctx, id)
	})
}

func (c *Conf) CreateProduct(ctx context.Context, in NewProduct) (Product, error) {
	now := c.now().UTC()
	p := Product{ID: uuid.NewString(), CreatedAt: now}
	p, err := c.fill(ctx, p, in)
	if err != nil {
		return Product{}, err
	}
	if err := c.store.SaveProduct(ctx, p); err != nil {
		return Product{}, err
	}
	c.invalidate(ctx, keyProductsAll, keyProducts(p.CategoryID))
	return p, nil
}

func (c *Conf) UpdateProduct(ctx context.Context, id string, in NewProduct) (Product, error) {
	cur, err := c.store.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p, err := c.fill(ctx, cur, in)
	if err != nil {
		return Product{}, err
	}
	if err := c.store.SaveProduct(ctx, p); err != nil {
		return Product{}, err
	}
	c.invalidate(ctx, keyProduct(id), keyProductsAll, keyProducts(cur.CategoryID), keyProducts(p.CategoryID))
	return p, nil
}

func (c *Conf) DeleteProduct(ctx context.Context, id string) error {
	cur, err := c.store.Product(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, keyProduct(id), keyProductsAll, keyProducts(cur.CategoryID))
	return nil
}

// fill validates in and copies it onto p, deriving slug, category snapshot and pack prices.
func (c *Conf) fill(ctx context.Context, p Product, in NewProduct) (Product, error) {
	if err := c.validate.Struct(in); err != nil {
		return Product{}, c.validationError(err)
	}
	if in.BaseGrams == 0 {
		in.BaseGrams = 1000
	}
	sizes, err := PriceMatrix(in.Price, in.BaseGrams, in.PackGrams)
	if err != nil {
		return Product{}, err
	}
	cat, err := c.store.Category(ctx, in.CategoryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, fmt.Errorf("%w: unknown category %s", ErrValidation, in.CategoryID)
		}
		return Product{}, err
	}
	if err := c.ensureProductNameFree(ctx, in.Name, p.ID); err != nil {
		return Product{}, err
	}

	p.Name = strings.Join(strings.Fields(in.Name), " ")
	p.Slug = Slugify(in.Name)
	p.Description = in.Description
	p.CategoryID = cat.ID
	p.CategoryName = cat.Name
	p.Price = in.Price
	p.BaseGrams = in.BaseGrams
	p.Stock = in.Stock
	p.ImageURLs = append([]string{}, in.ImageURLs...)
	p.Sizes = sizes
	p.UpdatedAt = c.now().UTC()
	return p, nil
}

func (c *Conf) ensureProductNameFree(ctx context.Context, name, exceptID string) error {
	all, err := c.store.Products(ctx, "")
	if err != nil {
		return err
	}
	want := NormalizeName(name)
	for _, p := range all {
		if p.ID != exceptID && NormalizeName(p.Name) == want {
			return fmt.Errorf("%w: product %q", ErrDuplicateName, p.Name)
		}
	}
	return nil
}

// Quote prices one pack of a product for checkout. An empty size means the base pack.
func (c *Conf) Quote(ctx context.Context, productID, size string) (orders.Quote, error) {
	p, err := c.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return orders.Quote{}, fmt.Errorf("%w: unknown product %s", orders.ErrValidation, productID)
		}
		return orders.Quote{}, err
	}
	q := orders.Quote{Name: p.Name, Category: p.CategoryName, UnitPrice: p.Price}
	if size == "" {
		return q, nil
	}
	for _, s := range p.Sizes {
		if strings.EqualFold(s.Label, strings.TrimSpace(size)) {
			q.UnitPrice = s.Price
			return q, nil
		}
	}
	return orders.Quote{}, fmt.Errorf("%w: product %s has no %q pack", orders.ErrValidation, productID, size)
}

// StockEffect takes an accepted order's items out of stock. It is keyed by order id so a
// repeated acceptance does not decrement twice.
type StockEffect struct {
	c *Conf
}

func (c *Conf) StockEffect() StockEffect {
	return StockEffect{c: c}
}

func (StockEffect) Name() string { return "catalog.stock" }

func (e StockEffect) Apply(ctx context.Context, _, after orders.Order) error {
	lines := make([]StockLine, 0, len(after.Items))
	keys := []string{keyProductsAll}
	for _, li := range after.Items {
		lines = append(lines, StockLine{ProductID: li.ProductID, Quantity: li.Quantity})
		keys = append(keys, keyProduct(li.ProductID))
		if p, err := e.c.store.Product(ctx, li.ProductID); err == nil {
			keys = append(keys, keyProducts(p.CategoryID))
		}
	}
	if err := e.c.store.DecrementStock(ctx, after.ID, lines); err != nil {
		return fmt.Errorf("decrementing stock for order %s: %w", after.ID, err)
	}
	e.c.invalidate(ctx, keys...)
	return nil
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noCache) Delete(context.Context, ...string) error                  { return nil }
