package models

import "time"

type UserType string

const (
	UserTypeUser   UserType = "user"
	UserTypeSeller UserType = "seller"
)

func (t UserType) Valid() bool {
	return t == UserTypeUser || t == UserTypeSeller
}

// User is a buyer account. PurchaseCount only moves through checkout.
type User struct {
	ID            string    `json:"id" bson:"_id"`
	Name          string    `json:"name" bson:"name"`
	Mail          string    `json:"mail" bson:"mail"`
	Phone         string    `json:"phone" bson:"phone"`
	Password      string    `json:"-" bson:"password"`
	UserType      UserType  `json:"user_type" bson:"user_type"`
	PurchaseCount int64     `json:"purchase_count" bson:"purchase_count"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// Seller owns an ordered list of embedded products. SellCount only moves through checkout.
type Seller struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Mail      string    `json:"mail" bson:"mail"`
	Phone     string    `json:"phone" bson:"phone"`
	Password  string    `json:"-" bson:"password"`
	UserType  UserType  `json:"user_type" bson:"user_type"`
	SellCount int64     `json:"sell_count" bson:"sell_count"`
	Products  []Product `json:"products" bson:"products"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type RegisterRequest struct {
	Name      string   `json:"name" binding:"required"`
	Mail      string   `json:"mail" binding:"required,email"`
	Phone     string   `json:"phone"`
	Password  string   `json:"password" binding:"required"`
	UserType  UserType `json:"user_type" binding:"required"`
	SecretKey string   `json:"secret_key"`
}

type RegisterResult struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	UserType UserType `json:"user_type"`
}

type LoginRequest struct {
	Mail     string   `json:"mail" binding:"required"`
	Password string   `json:"password" binding:"required"`
	UserType UserType `json:"user_type" binding:"required"`
}

type LoginResult struct {
	Token    string   `json:"token"`
	UserType UserType `json:"user_type"`
	Name     string   `json:"name"`
	ID       string   `json:"id"`
}
