package repository

import (
	"context"
	"iter"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketplace-service/models"
)

// MemoryStore keeps everything in process. Each method holds the store lock
// for its whole duration, so every call is atomic the way a single Mongo
// update is. Used for local runs (STORE_BACKEND=memory) and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	sellers map[string]*models.Seller
	banners map[string]*models.Banner
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*models.User),
		sellers: make(map[string]*models.Seller),
		banners: make(map[string]*models.Banner),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicate
	}
	for _, u := range s.users {
		if u.Mail == user.Mail {
			return ErrDuplicate
		}
	}
	u := *user
	s.users[u.ID] = &u
	return nil
}

func (s *MemoryStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) FindUserByMail(ctx context.Context, mail string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Mail == mail {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) IncrementPurchaseCount(ctx context.Context, userID string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PurchaseCount += delta
	return nil
}

func (s *MemoryStore) CreateSeller(ctx context.Context, seller *models.Seller) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sellers[seller.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.sellers {
		if existing.Mail == seller.Mail {
			return ErrDuplicate
		}
	}
	s.sellers[seller.ID] = copySeller(seller)
	return nil
}

func (s *MemoryStore) FindSellerByID(ctx context.Context, id string) (*models.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seller, ok := s.sellers[id]
	if !ok {
		return nil, ErrSellerNotFound
	}
	return copySeller(seller), nil
}

func (s *MemoryStore) FindSellerByMail(ctx context.Context, mail string) (*models.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, seller := range s.sellers {
		if seller.Mail == mail {
			return copySeller(seller), nil
		}
	}
	return nil, ErrSellerNotFound
}

func (s *MemoryStore) IncrementSellCount(ctx context.Context, sellerID string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, ok := s.sellers[sellerID]
	if !ok {
		return ErrSellerNotFound
	}
	seller.SellCount += delta
	return nil
}

func (s *MemoryStore) AddProduct(ctx context.Context, sellerID string, attrs models.ProductAttributes) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, ok := s.sellers[sellerID]
	if !ok {
		return nil, ErrSellerNotFound
	}
	p := models.Product{
		ID:                uuid.NewString(),
		ProductAttributes: attrs,
		CreatedAt:         s.now(),
	}
	seller.Products = append(seller.Products, p)
	return &p, nil
}

func (s *MemoryStore) RemoveProduct(ctx context.Context, sellerID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, ok := s.sellers[sellerID]
	if !ok {
		return ErrSellerNotFound
	}
	i := indexOfProduct(seller.Products, productID)
	if i < 0 {
		return ErrProductNotFound
	}
	seller.Products = slices.Delete(seller.Products, i, i+1)
	return nil
}

func (s *MemoryStore) FindProduct(ctx context.Context, sellerID, productID string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seller, ok := s.sellers[sellerID]
	if !ok {
		return nil, ErrSellerNotFound
	}
	i := indexOfProduct(seller.Products, productID)
	if i < 0 {
		return nil, ErrProductNotFound
	}
	p := copyProduct(seller.Products[i])
	return &p, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, sellerID string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seller, ok := s.sellers[sellerID]
	if !ok {
		return nil, ErrSellerNotFound
	}
	return copySeller(seller).Products, nil
}

func (s *MemoryStore) IncrementProductSellCount(ctx context.Context, sellerID, productID string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, ok := s.sellers[sellerID]
	if !ok {
		return ErrSellerNotFound
	}
	i := indexOfProduct(seller.Products, productID)
	if i < 0 {
		return ErrProductNotFound
	}
	p := &seller.Products[i]
	if p.SellCount == nil {
		p.SellCount = models.Int64Ptr(0)
	}
	*p.SellCount += delta
	return nil
}

// AllProducts snapshots the catalog when iteration starts. Sellers are visited
// in id order and each seller's products in insertion order.
func (s *MemoryStore) AllProducts(ctx context.Context) iter.Seq2[models.ListedProduct, error] {
	return func(yield func(models.ListedProduct, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(models.ListedProduct{}, err)
			return
		}

		s.mu.RLock()
		ids := make([]string, 0, len(s.sellers))
		for id := range s.sellers {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		var listed []models.ListedProduct
		for _, id := range ids {
			for _, p := range s.sellers[id].Products {
				listed = append(listed, models.ListedProduct{Product: copyProduct(p), SellerID: id})
			}
		}
		s.mu.RUnlock()

		for _, lp := range listed {
			if !yield(lp, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) CreateBanner(ctx context.Context, banner *models.Banner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banners[banner.ID]; ok {
		return ErrDuplicate
	}
	b := *banner
	s.banners[b.ID] = &b
	return nil
}

func (s *MemoryStore) ListBanners(ctx context.Context, sellerID string) ([]models.Banner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Banner, 0, len(s.banners))
	for _, b := range s.banners {
		if sellerID == "" || b.SellerID == sellerID {
			out = append(out, *b)
		}
	}
	sortBanners(out)
	return out, nil
}

func (s *MemoryStore) DeleteBanner(ctx context.Context, sellerID, bannerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.banners[bannerID]
	if !ok || b.SellerID != sellerID {
		return ErrBannerNotFound
	}
	delete(s.banners, bannerID)
	return nil
}

func indexOfProduct(products []models.Product, id string) int {
	return slices.IndexFunc(products, func(p models.Product) bool { return p.ID == id })
}

func copyProduct(p models.Product) models.Product {
	if p.SellCount != nil {
		p.SellCount = models.Int64Ptr(*p.SellCount)
	}
	return p
}

func copySeller(seller *models.Seller) *models.Seller {
	out := *seller
	out.Products = make([]models.Product, len(seller.Products))
	for i, p := range seller.Products {
		out.Products[i] = copyProduct(p)
	}
	return &out
}

// sortBanners orders banners oldest first, by id on equal timestamps.
func sortBanners(banners []models.Banner) {
	sort.SliceStable(banners, func(i, j int) bool {
		if !banners[i].CreatedAt.Equal(banners[j].CreatedAt) {
			return banners[i].CreatedAt.Before(banners[j].CreatedAt)
		}
		return banners[i].ID < banners[j].ID
	})
}
