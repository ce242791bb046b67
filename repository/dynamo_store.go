package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"marketplace-service/models"
)

// DynamoAPI is the subset of *dynamodb.Client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

const (
	mailIndex   = "mail-index"
	sellerIndex = "seller-index"
	// Mail reservation items live next to the accounts they guard.
	mailKeyPrefix = "mail#"
)

type DynamoTables struct {
	Users   string
	Sellers string
	Banners string
}

// DynamoStore keeps each seller as one item whose products attribute is a map
// keyed by product id, so a product can be added, removed or counted with a
// single conditional UpdateItem on a nested path.
type DynamoStore struct {
	client DynamoAPI
	tables DynamoTables
}

func NewDynamoStore(client DynamoAPI, tables DynamoTables) *DynamoStore {
	return &DynamoStore{client: client, tables: tables}
}

type ddbUser struct {
	ID            string `dynamodbav:"id"`
	Name          string `dynamodbav:"name"`
	Mail          string `dynamodbav:"mail"`
	Phone         string `dynamodbav:"phone"`
	Password      string `dynamodbav:"password"`
	UserType      string `dynamodbav:"user_type"`
	PurchaseCount int64  `dynamodbav:"purchase_count"`
	CreatedAt     string `dynamodbav:"created_at"`
}

type ddbProduct struct {
	ID          string  `dynamodbav:"id"`
	Name        string  `dynamodbav:"name"`
	Description string  `dynamodbav:"description"`
	Image       string  `dynamodbav:"image"`
	Price       float64 `dynamodbav:"price"`
	Category    string  `dynamodbav:"category"`
	SellCount   *int64  `dynamodbav:"sell_count,omitempty"`
	CreatedAt   string  `dynamodbav:"created_at"`
	// Position keeps insertion order, which a map attribute does not.
	Position int64 `dynamodbav:"position"`
}

type ddbSeller struct {
	ID        string                `dynamodbav:"id"`
	Name      string                `dynamodbav:"name"`
	Mail      string                `dynamodbav:"mail"`
	Phone     string                `dynamodbav:"phone"`
	Password  string                `dynamodbav:"password"`
	UserType  string                `dynamodbav:"user_type"`
	SellCount int64                 `dynamodbav:"sell_count"`
	Products  map[string]ddbProduct `dynamodbav:"products"`
	CreatedAt string                `dynamodbav:"created_at"`
}

type ddbBanner struct {
	ID          string `dynamodbav:"id"`
	SellerID    string `dynamodbav:"seller_id"`
	SellerName  string `dynamodbav:"seller_name"`
	Title       string `dynamodbav:"title"`
	Description string `dynamodbav:"description"`
	Image       string `dynamodbav:"image"`
	Link        string `dynamodbav:"link"`
	CreatedAt   string `dynamodbav:"created_at"`
}

func (d *DynamoStore) CreateUser(ctx context.Context, user *models.User) error {
	item, err := attributevalue.MarshalMap(ddbUser{
		ID:            user.ID,
		Name:          user.Name,
		Mail:          user.Mail,
		Phone:         user.Phone,
		Password:      user.Password,
		UserType:      string(user.UserType),
		PurchaseCount: user.PurchaseCount,
		CreatedAt:     formatTime(user.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return d.putAccount(ctx, d.tables.Users, user.ID, user.Mail, item)
}

func (d *DynamoStore) CreateSeller(ctx context.Context, seller *models.Seller) error {
	ds := ddbSeller{
		ID:        seller.ID,
		Name:      seller.Name,
		Mail:      seller.Mail,
		Phone:     seller.Phone,
		Password:  seller.Password,
		UserType:  string(seller.UserType),
		SellCount: seller.SellCount,
		Products:  make(map[string]ddbProduct, len(seller.Products)),
		CreatedAt: formatTime(seller.CreatedAt),
	}
	for i, p := range seller.Products {
		ds.Products[p.ID] = toDDBProduct(p, int64(i))
	}
	item, err := attributevalue.MarshalMap(ds)
	if err != nil {
		return fmt.Errorf("marshal seller: %w", err)
	}
	return d.putAccount(ctx, d.tables.Sellers, seller.ID, seller.Mail, item)
}

// putAccount writes the account and a mail reservation item in one transaction,
// which is what makes mail unique (a GSI cannot enforce it).
func (d *DynamoStore) putAccount(ctx context.Context, table, id, mail string, item map[string]types.AttributeValue) error {
	notExists := "attribute_not_exists(id)"
	_, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: &table, Item: item, ConditionExpression: &notExists}},
			{Put: &types.Put{
				TableName: &table,
				Item: map[string]types.AttributeValue{
					"id":       &types.AttributeValueMemberS{Value: mailKeyPrefix + mail},
					"owner_id": &types.AttributeValueMemberS{Value: id},
				},
				ConditionExpression: &notExists,
			}},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, r := range canceled.CancellationReasons {
				if sdkaws.ToString(r.Code) == "ConditionalCheckFailed" {
					return ErrDuplicate
				}
			}
		}
		return fmt.Errorf("dynamodb put account failed: %w", err)
	}
	return nil
}

func (d *DynamoStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	item, err := d.getItem(ctx, d.tables.Users, id, "", nil)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrUserNotFound
	}
	return decodeUser(item)
}

func (d *DynamoStore) FindUserByMail(ctx context.Context, mail string) (*models.User, error) {
	item, err := d.queryByMail(ctx, d.tables.Users, mail)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrUserNotFound
	}
	return decodeUser(item)
}

func (d *DynamoStore) IncrementPurchaseCount(ctx context.Context, userID string, delta int64) error {
	err := d.increment(ctx, d.tables.Users, userID, "purchase_count", delta)
	if isConditionFailed(err) {
		return ErrUserNotFound
	}
	return err
}

func (d *DynamoStore) FindSellerByID(ctx context.Context, id string) (*models.Seller, error) {
	item, err := d.getItem(ctx, d.tables.Sellers, id, "", nil)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrSellerNotFound
	}
	return decodeSeller(item)
}

func (d *DynamoStore) FindSellerByMail(ctx context.Context, mail string) (*models.Seller, error) {
	item, err := d.queryByMail(ctx, d.tables.Sellers, mail)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrSellerNotFound
	}
	return decodeSeller(item)
}

func (d *DynamoStore) IncrementSellCount(ctx context.Context, sellerID string, delta int64) error {
	err := d.increment(ctx, d.tables.Sellers, sellerID, "sell_count", delta)
	if isConditionFailed(err) {
		return ErrSellerNotFound
	}
	return err
}

func (d *DynamoStore) increment(ctx context.Context, table, id, attr string, delta int64) error {
	expr := "SET #c = if_not_exists(#c, :zero) + :d"
	cond := "attribute_exists(id) AND attribute_not_exists(owner_id)"
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                &table,
		Key:                      idKey(id),
		UpdateExpression:         &expr,
		ConditionExpression:      &cond,
		ExpressionAttributeNames: map[string]string{"#c": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":d":    &types.AttributeValueMemberN{Value: fmt.Sprint(delta)},
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("increment %s failed: %w", attr, err)
	}
	return err
}

func (d *DynamoStore) AddProduct(ctx context.Context, sellerID string, attrs models.ProductAttributes) (*models.Product, error) {
	now := time.Now().UTC()
	p := models.Product{
		ID:                uuid.NewString(),
		ProductAttributes: attrs,
		CreatedAt:         now,
	}
	av, err := attributevalue.Marshal(toDDBProduct(p, now.UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}

	expr := "SET #products.#pid = :p"
	cond := "attribute_exists(#products)"
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &d.tables.Sellers,
		Key:                       idKey(sellerID),
		UpdateExpression:          &expr,
		ConditionExpression:       &cond,
		ExpressionAttributeNames:  map[string]string{"#products": "products", "#pid": p.ID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":p": av},
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("add product failed: %w", err)
	}
	return &p, nil
}

func (d *DynamoStore) RemoveProduct(ctx context.Context, sellerID, productID string) error {
	expr := "REMOVE #products.#pid"
	cond := "attribute_exists(#products.#pid)"
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                &d.tables.Sellers,
		Key:                      idKey(sellerID),
		UpdateExpression:         &expr,
		ConditionExpression:      &cond,
		ExpressionAttributeNames: map[string]string{"#products": "products", "#pid": productID},
	})
	if err != nil {
		if isConditionFailed(err) {
			return d.missingProduct(ctx, sellerID)
		}
		return fmt.Errorf("remove product failed: %w", err)
	}
	return nil
}

func (d *DynamoStore) FindProduct(ctx context.Context, sellerID, productID string) (*models.Product, error) {
	item, err := d.getItem(ctx, d.tables.Sellers, sellerID, "id, #products.#pid",
		map[string]string{"#products": "products", "#pid": productID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrSellerNotFound
	}
	var ds ddbSeller
	if err := attributevalue.UnmarshalMap(item, &ds); err != nil {
		return nil, fmt.Errorf("unmarshal seller: %w", err)
	}
	dp, ok := ds.Products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	p := fromDDBProduct(dp)
	return &p, nil
}

func (d *DynamoStore) ListProducts(ctx context.Context, sellerID string) ([]models.Product, error) {
	item, err := d.getItem(ctx, d.tables.Sellers, sellerID, "id, #products", map[string]string{"#products": "products"})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrSellerNotFound
	}
	var ds ddbSeller
	if err := attributevalue.UnmarshalMap(item, &ds); err != nil {
		return nil, fmt.Errorf("unmarshal seller: %w", err)
	}
	return orderedProducts(ds.Products), nil
}

func (d *DynamoStore) IncrementProductSellCount(ctx context.Context, sellerID, productID string, delta int64) error {
	expr := "SET #products.#pid.#sc = if_not_exists(#products.#pid.#sc, :zero) + :d"
	cond := "attribute_exists(#products.#pid)"
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &d.tables.Sellers,
		Key:                 idKey(sellerID),
		UpdateExpression:    &expr,
		ConditionExpression: &cond,
		ExpressionAttributeNames: map[string]string{
			"#products": "products",
			"#pid":      productID,
			"#sc":       "sell_count",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":d":    &types.AttributeValueMemberN{Value: fmt.Sprint(delta)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return d.missingProduct(ctx, sellerID)
		}
		return fmt.Errorf("increment product sell count failed: %w", err)
	}
	return nil
}

func (d *DynamoStore) missingProduct(ctx context.Context, sellerID string) error {
	item, err := d.getItem(ctx, d.tables.Sellers, sellerID, "id", nil)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrSellerNotFound
	}
	return ErrProductNotFound
}

// AllProducts scans the sellers table page by page. Seller order follows the
// scan; products within a seller keep insertion order.
func (d *DynamoStore) AllProducts(ctx context.Context) iter.Seq2[models.ListedProduct, error] {
	return func(yield func(models.ListedProduct, error) bool) {
		projection := "id, #products"
		filter := "attribute_exists(#products)"
		paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
			TableName:                &d.tables.Sellers,
			ProjectionExpression:     &projection,
			FilterExpression:         &filter,
			ExpressionAttributeNames: map[string]string{"#products": "products"},
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(models.ListedProduct{}, fmt.Errorf("scan page failed: %w", err))
				return
			}
			for _, it := range page.Items {
				var ds ddbSeller
				if err := attributevalue.UnmarshalMap(it, &ds); err != nil {
					yield(models.ListedProduct{}, fmt.Errorf("unmarshal seller: %w", err))
					return
				}
				for _, p := range orderedProducts(ds.Products) {
					if !yield(models.ListedProduct{Product: p, SellerID: ds.ID}, nil) {
						return
					}
				}
			}
		}
	}
}

func (d *DynamoStore) CreateBanner(ctx context.Context, banner *models.Banner) error {
	item, err := attributevalue.MarshalMap(ddbBanner{
		ID:          banner.ID,
		SellerID:    banner.SellerID,
		SellerName:  banner.SellerName,
		Title:       banner.Title,
		Description: banner.Description,
		Image:       banner.Image,
		Link:        banner.Link,
		CreatedAt:   formatTime(banner.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("marshal banner: %w", err)
	}
	cond := "attribute_not_exists(id)"
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &d.tables.Banners, Item: item, ConditionExpression: &cond})
	if err != nil {
		if isConditionFailed(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (d *DynamoStore) ListBanners(ctx context.Context, sellerID string) ([]models.Banner, error) {
	var items []map[string]types.AttributeValue
	if sellerID == "" {
		paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{TableName: &d.tables.Banners})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("scan banners failed: %w", err)
			}
			items = append(items, page.Items...)
		}
	} else {
		keyCond := "seller_id = :sid"
		index := sellerIndex
		paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
			TableName:                 &d.tables.Banners,
			IndexName:                 &index,
			KeyConditionExpression:    &keyCond,
			ExpressionAttributeValues: map[string]types.AttributeValue{":sid": &types.AttributeValueMemberS{Value: sellerID}},
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("query banners failed: %w", err)
			}
			items = append(items, page.Items...)
		}
	}

	banners := make([]models.Banner, 0, len(items))
	for _, it := range items {
		var db ddbBanner
		if err := attributevalue.UnmarshalMap(it, &db); err != nil {
			return nil, fmt.Errorf("unmarshal banner: %w", err)
		}
		banners = append(banners, models.Banner{
			ID:         db.ID,
			SellerID:   db.SellerID,
			SellerName: db.SellerName,
			BannerPayload: models.BannerPayload{
				Title:       db.Title,
				Description: db.Description,
				Image:       db.Image,
				Link:        db.Link,
			},
			CreatedAt: parseTime(db.CreatedAt),
		})
	}
	sortBanners(banners)
	return banners, nil
}

func (d *DynamoStore) DeleteBanner(ctx context.Context, sellerID, bannerID string) error {
	cond := "seller_id = :sid"
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 &d.tables.Banners,
		Key:                       idKey(bannerID),
		ConditionExpression:       &cond,
		ExpressionAttributeValues: map[string]types.AttributeValue{":sid": &types.AttributeValueMemberS{Value: sellerID}},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrBannerNotFound
		}
		return fmt.Errorf("dynamodb DeleteItem failed: %w", err)
	}
	return nil
}

// getItem returns nil for missing items and for mail reservations, which share
// the accounts' key space but are not accounts.
func (d *DynamoStore) getItem(ctx context.Context, table, id, projection string, names map[string]string) (map[string]types.AttributeValue, error) {
	if strings.HasPrefix(id, mailKeyPrefix) {
		return nil, nil
	}
	in := &dynamodb.GetItemInput{TableName: &table, Key: idKey(id)}
	if projection != "" {
		in.ProjectionExpression = &projection
		in.ExpressionAttributeNames = names
	}
	out, err := d.client.GetItem(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	if _, ok := out.Item["owner_id"]; ok {
		return nil, nil
	}
	return out.Item, nil
}

func (d *DynamoStore) queryByMail(ctx context.Context, table, mail string) (map[string]types.AttributeValue, error) {
	keyCond := "mail = :m"
	index := mailIndex
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 &table,
		IndexName:                 &index,
		KeyConditionExpression:    &keyCond,
		ExpressionAttributeValues: map[string]types.AttributeValue{":m": &types.AttributeValueMemberS{Value: mail}},
		Limit:                     sdkaws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb Query failed: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return out.Items[0], nil
}

func decodeUser(item map[string]types.AttributeValue) (*models.User, error) {
	var du ddbUser
	if err := attributevalue.UnmarshalMap(item, &du); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &models.User{
		ID:            du.ID,
		Name:          du.Name,
		Mail:          du.Mail,
		Phone:         du.Phone,
		Password:      du.Password,
		UserType:      models.UserType(du.UserType),
		PurchaseCount: du.PurchaseCount,
		CreatedAt:     parseTime(du.CreatedAt),
	}, nil
}

func decodeSeller(item map[string]types.AttributeValue) (*models.Seller, error) {
	var ds ddbSeller
	if err := attributevalue.UnmarshalMap(item, &ds); err != nil {
		return nil, fmt.Errorf("unmarshal seller: %w", err)
	}
	return &models.Seller{
		ID:        ds.ID,
		Name:      ds.Name,
		Mail:      ds.Mail,
		Phone:     ds.Phone,
		Password:  ds.Password,
		UserType:  models.UserType(ds.UserType),
		SellCount: ds.SellCount,
		Products:  orderedProducts(ds.Products),
		CreatedAt: parseTime(ds.CreatedAt),
	}, nil
}

func toDDBProduct(p models.Product, position int64) ddbProduct {
	return ddbProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Image:       p.Image,
		Price:       p.Price,
		Category:    p.Category,
		SellCount:   p.SellCount,
		CreatedAt:   formatTime(p.CreatedAt),
		Position:    position,
	}
}

func fromDDBProduct(dp ddbProduct) models.Product {
	return models.Product{
		ID: dp.ID,
		ProductAttributes: models.ProductAttributes{
			Name:        dp.Name,
			Description: dp.Description,
			Image:       dp.Image,
			Price:       dp.Price,
			Category:    dp.Category,
		},
		SellCount: dp.SellCount,
		CreatedAt: parseTime(dp.CreatedAt),
	}
}

func orderedProducts(m map[string]ddbProduct) []models.Product {
	ordered := make([]ddbProduct, 0, len(m))
	for _, dp := range m {
		ordered = append(ordered, dp)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Position != ordered[j].Position {
			return ordered[i].Position < ordered[j].Position
		}
		return ordered[i].ID < ordered[j].ID
	})
	out := make([]models.Product, len(ordered))
	for i, dp := range ordered {
		out[i] = fromDDBProduct(dp)
	}
	return out
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
