package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/jhaldar/sprout/lib/utils"
	"github.com/jhaldar/sprout/models"
	storage "github.com/jhaldar/sprout/storage/persistent"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Token lifetimes. The short access token forces regular refreshes; the
// refresh token bounds how long a stolen credential stays usable.
const (
	authTokenTTL    = 15 * time.Minute
	refreshTokenTTL = 24 * time.Hour
)

// defaultBehaviors seeds a new profile's behavior catalog.
var defaultBehaviors = []string{
	"Completed chores",
	"Kind words",
	"Homework done",
	"Listened well",
}

// Auth implements parent account authentication: sign-up, sign-in, and token
// refresh. It holds its own dependencies; construct one with New rather than
// relying on package state.
type Auth struct {
	store      storage.StorageInterface
	signingKey string
}

// New creates an Auth service over the given storage backend and JWT
// signing key.
func New(store storage.StorageInterface, signingKey string) *Auth {
	return &Auth{store: store, signingKey: signingKey}
}

// createToken signs a JWT carrying the account ID with the given lifetime.
func (a *Auth) createToken(accountID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":  accountID,
		"exp": time.Now().Add(ttl).Unix(),
	}
	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.signingKey))
	if err != nil {
		return "", errors.New("failed to create token")
	}
	return signedToken, nil
}

// CreateTokens creates an access and a refresh token pair for an account.
func (a *Auth) CreateTokens(accountID string) (string, string, error) {
	authToken, err := a.createToken(accountID, authTokenTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := a.createToken(accountID, refreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return authToken, refreshToken, nil
}

// VerifyToken parses and validates a signed token and returns the account ID
// it carries.
func (a *Auth) VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.signingKey), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	id, ok := claims["id"].(string)
	if !ok {
		return "", errors.New("invalid token")
	}
	return id, nil
}

// SignIn authenticates a parent by username and password and returns a fresh
// token pair.
func (a *Auth) SignIn(ctx context.Context, username, password string) (string, string, error) {
	if len(username) < 2 {
		return "", "", errors.New("invalid username")
	}

	foundAccount, err := a.store.FindAccount(ctx, bson.M{"username": username})
	if err != nil {
		return "", "", errors.New("authentication failed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(foundAccount.PasswordHash), []byte(password)); err != nil {
		return "", "", errors.New("authentication failed")
	}

	return a.CreateTokens(foundAccount.ID.Hex())
}

// SignUp registers a new parent account and creates the family profile with
// its first child and the default behavior catalog. A profile always carries
// at least one child, so the first child's name is part of sign-up.
func (a *Auth) SignUp(ctx context.Context, username, email, password, familyName, firstChildName string) (string, string, error) {
	if len(username) < 2 {
		return "", "", errors.New("invalid username")
	}
	if !utils.ValidateEmail(email) {
		return "", "", errors.New("invalid email format")
	}
	if !utils.ValidatePassword(password) {
		return "", "", errors.New("password must be at least 8 characters and contain both letters and numbers")
	}
	if firstChildName == "" {
		return "", "", errors.New("a first child name is required")
	}

	foundAccount, err := a.store.FindAccount(ctx, bson.M{"email": email})
	if err != nil && err != mongo.ErrNoDocuments {
		return "", "", err
	}
	if foundAccount != nil {
		return "", "", errors.New("an account with this email already exists")
	}

	foundAccount, err = a.store.FindAccount(ctx, bson.M{"username": username})
	if err != nil && err != mongo.ErrNoDocuments {
		return "", "", err
	}
	if foundAccount != nil {
		return "", "", errors.New("username is taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	account := &models.Account{
		ID:           primitive.NewObjectID(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if _, err := a.store.AddAccount(ctx, account); err != nil {
		return "", "", err
	}

	profile := models.Profile{
		AccountID:    account.ID,
		Name:         familyName,
		WeekStartDay: int(time.Sunday),
	}
	profile, _ = profile.WithChild(firstChildName)
	for _, label := range defaultBehaviors {
		profile, _ = profile.WithBehavior(label)
	}
	if _, err := a.store.AddProfile(ctx, &profile); err != nil {
		return "", "", err
	}

	return a.CreateTokens(account.ID.Hex())
}

// RefreshToken validates a refresh token for the given account and issues a
// new token pair.
func (a *Auth) RefreshToken(accountID, refreshToken string) (string, string, error) {
	id, err := a.VerifyToken(refreshToken)
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return "", "", errors.New("expired refresh token")
		}
		return "", "", err
	}
	if id != accountID {
		return "", "", errors.New("invalid refresh token")
	}
	return a.CreateTokens(accountID)
}

// UpdateAccount changes an account's username, email, or password after
// verifying the current password. Empty fields are left unchanged.
func (a *Auth) UpdateAccount(ctx context.Context, accountID, currentPassword, newUsername, newEmail, newPassword string) error {
	objectID, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return err
	}

	foundAccount, err := a.store.FindAccount(ctx, bson.M{"_id": objectID})
	if err != nil {
		return errors.New("authentication failed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(foundAccount.PasswordHash), []byte(currentPassword)); err != nil {
		return errors.New("authentication failed")
	}

	set := bson.M{}
	if newUsername != "" {
		existing, err := a.store.FindAccount(ctx, bson.M{"username": newUsername})
		if err != nil && err != mongo.ErrNoDocuments {
			return err
		}
		if existing != nil {
			return errors.New("username already in use")
		}
		set["username"] = newUsername
	}
	if newEmail != "" {
		if !utils.ValidateEmail(newEmail) {
			return errors.New("invalid email format")
		}
		existing, err := a.store.FindAccount(ctx, bson.M{"email": newEmail})
		if err != nil && err != mongo.ErrNoDocuments {
			return err
		}
		if existing != nil {
			return errors.New("email already in use")
		}
		set["email"] = newEmail
	}
	if newPassword != "" {
		if !utils.ValidatePassword(newPassword) {
			return errors.New("password must be at least 8 characters and contain both letters and numbers")
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		set["password_hash"] = string(hashedPassword)
	}
	if len(set) == 0 {
		return errors.New("nothing to update")
	}

	if _, err := a.store.UpdateAccount(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}); err != nil {
		return errors.New("internal server error updating account")
	}
	return nil
}
