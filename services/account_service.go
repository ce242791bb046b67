package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
	"marketplace-service/repository"
)

type TokenIssuer interface {
	IssueToken(subject, userType string) (string, error)
}

// AccountService registers and authenticates buyers and sellers.
type AccountService struct {
	store        repository.AccountStore
	tokens       TokenIssuer
	sellerSecret string
	bcryptCost   int
	logger       *zap.Logger
}

// NewAccountService wires the service. Sellers can only register when they present sellerSecret.
func NewAccountService(store repository.AccountStore, tokens TokenIssuer, sellerSecret string, bcryptCost int, logger *zap.Logger) *AccountService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		store:        store,
		tokens:       tokens,
		sellerSecret: sellerSecret,
		bcryptCost:   bcryptCost,
		logger:       logger,
	}
}

func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error) {
	req.Mail = strings.ToLower(strings.TrimSpace(req.Mail))
	if !req.UserType.Valid() {
		return nil, apperrors.InvalidArgument("invalid user type")
	}
	if req.Mail == "" || req.Password == "" {
		return nil, apperrors.InvalidArgument("mail and password are required")
	}

	exists, err := s.mailTaken(ctx, req.UserType, req.Mail)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict(string(req.UserType) + " already exists")
	}
	if req.UserType == models.UserTypeSeller && !s.validSellerSecret(req.SecretKey) {
		return nil, apperrors.Unauthorized("invalid seller secret key")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to hash password", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	if req.UserType == models.UserTypeSeller {
		err = s.store.CreateSeller(ctx, &models.Seller{
			ID:        id,
			Name:      req.Name,
			Mail:      req.Mail,
			Phone:     req.Phone,
			Password:  string(hashed),
			UserType:  models.UserTypeSeller,
			Products:  []models.Product{},
			CreatedAt: now,
		})
	} else {
		err = s.store.CreateUser(ctx, &models.User{
			ID:        id,
			Name:      req.Name,
			Mail:      req.Mail,
			Phone:     req.Phone,
			Password:  string(hashed),
			UserType:  models.UserTypeUser,
			CreatedAt: now,
		})
	}
	if err != nil {
		// A concurrent registration can still win the race after the lookup above.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(string(req.UserType) + " already exists")
		}
		return nil, storeError(err, "")
	}

	s.logger.Info("account registered", zap.String("id", id), zap.String("user_type", string(req.UserType)))
	return &models.RegisterResult{ID: id, Name: req.Name, UserType: req.UserType}, nil
}

// Authenticate checks the credential against the user or seller collection selected by user type.
func (s *AccountService) Authenticate(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	if !req.UserType.Valid() {
		return nil, apperrors.InvalidArgument("invalid user type")
	}
	mail := strings.ToLower(strings.TrimSpace(req.Mail))

	var id, name, hash string
	if req.UserType == models.UserTypeSeller {
		seller, err := s.store.FindSellerByMail(ctx, mail)
		if err != nil {
			return nil, s.authLookupError(err)
		}
		id, name, hash = seller.ID, seller.Name, seller.Password
	} else {
		user, err := s.store.FindUserByMail(ctx, mail)
		if err != nil {
			return nil, s.authLookupError(err)
		}
		id, name, hash = user.ID, user.Name, user.Password
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.IssueToken(id, string(req.UserType))
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to issue token", err)
	}
	return &models.LoginResult{Token: token, UserType: req.UserType, Name: name, ID: id}, nil
}

func (s *AccountService) mailTaken(ctx context.Context, userType models.UserType, mail string) (bool, error) {
	var err error
	if userType == models.UserTypeSeller {
		_, err = s.store.FindSellerByMail(ctx, mail)
	} else {
		_, err = s.store.FindUserByMail(ctx, mail)
	}
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrSellerNotFound):
		return false, nil
	default:
		return false, storeError(err, "")
	}
}

func (s *AccountService) authLookupError(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, repository.ErrSellerNotFound) {
		return apperrors.Unauthorized("invalid credentials")
	}
	return storeError(err, "")
}

func (s *AccountService) validSellerSecret(candidate string) bool {
	if s.sellerSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.sellerSecret)) == 1
}
