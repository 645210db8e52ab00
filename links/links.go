// Package links mints and checks the tokens behind document-upload and
// payment links. A token is an anonymous capability scoped to one
// submission; expiry, deactivation and the remaining-uses counter are
// all enforced here, never in handlers.
package links

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/miravisas/mirabackend/models"
	"github.com/miravisas/mirabackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	ErrNotFound         = errors.New("link not found")
	ErrExpired          = errors.New("link expired")
	ErrDeactivated      = errors.New("link deactivated")
	ErrExhausted        = errors.New("link has no uses remaining")
	ErrInvalidParameter = errors.New("invalid link parameter")
)

const tokenBytes = 32

// NewToken returns a 256-bit random token in hex.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type IssueParams struct {
	SubmissionID  bson.ObjectID
	Kind          models.LinkKind
	ExpiresInDays int
	MaxUses       int
	Notes         string
	CreatedBy     bson.ObjectID

	// Document links.
	RequiredDocumentTypes []string

	// Payment links.
	Amount      float64
	Currency    string
	BankDetails *models.BankDetails
}

func (p IssueParams) validate() error {
	if p.MaxUses <= 0 {
		return fmt.Errorf("%w: maxUses must be at least 1", ErrInvalidParameter)
	}
	if p.ExpiresInDays <= 0 {
		return fmt.Errorf("%w: expiresInDays must be at least 1", ErrInvalidParameter)
	}
	if p.Kind != models.LinkKindDocument && p.Kind != models.LinkKindPayment {
		return fmt.Errorf("%w: unknown link kind %q", ErrInvalidParameter, p.Kind)
	}
	if p.Kind == models.LinkKindPayment && p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParameter)
	}
	return nil
}

// Issue persists a new link with a fresh token. Token uniqueness is
// backed by the unique index on access_links.token; a collision is
// retried with a regenerated token.
func Issue(ctx context.Context, col *mongo.Collection, p IssueParams) (*models.AccessLink, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	link := models.AccessLink{
		ID:            bson.NewObjectID(),
		SubmissionID:  p.SubmissionID,
		Kind:          p.Kind,
		ExpiresAt:     now.Add(time.Duration(p.ExpiresInDays) * 24 * time.Hour),
		MaxUses:       p.MaxUses,
		UsesRemaining: p.MaxUses,
		IsActive:      true,
		Notes:         p.Notes,

		RequiredDocumentTypes: p.RequiredDocumentTypes,
		Amount:                p.Amount,
		Currency:              p.Currency,
		BankDetails:           p.BankDetails,

		CreatedBy: p.CreatedBy,
		CreatedAt: now,
	}

	for attempt := 0; attempt < 5; attempt++ {
		token, err := NewToken()
		if err != nil {
			return nil, err
		}
		link.Token = token

		_, err = col.InsertOne(ctx, link)
		if err == nil {
			return &link, nil
		}
		if !utils.IsDuplicateKey(err) {
			return nil, err
		}
	}
	return nil, errors.New("could not generate a unique link token")
}

// Check reports whether a stored link is usable at instant now. The
// expiry boundary itself counts as expired. Deactivation dominates the
// other failure modes.
func Check(link *models.AccessLink, now time.Time) error {
	if !link.IsActive {
		return ErrDeactivated
	}
	if !now.Before(link.ExpiresAt) {
		return ErrExpired
	}
	if link.UsesRemaining <= 0 {
		return ErrExhausted
	}
	return nil
}

// Validate looks a token up and checks it without consuming a use.
func Validate(ctx context.Context, col *mongo.Collection, token string, now time.Time) (*models.AccessLink, error) {
	var link models.AccessLink
	err := col.FindOne(ctx, bson.M{"token": token}).Decode(&link)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := Check(&link, now); err != nil {
		return nil, err
	}
	return &link, nil
}

// Consume atomically claims one use of the token. The decrement is a
// single conditional FindOneAndUpdate so two racing consumers of a
// link with one use left cannot both succeed, even across processes.
func Consume(ctx context.Context, col *mongo.Collection, token string, now time.Time) (*models.AccessLink, error) {
	return ConsumeN(ctx, col, token, 1, now)
}

// ConsumeN claims n uses in one conditional update. Either all n are
// granted or none; a link with fewer uses left fails with ErrExhausted.
func ConsumeN(ctx context.Context, col *mongo.Collection, token string, n int, now time.Time) (*models.AccessLink, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: consume count must be positive", ErrInvalidParameter)
	}

	var link models.AccessLink
	err := col.FindOneAndUpdate(ctx,
		bson.M{
			"token":         token,
			"isActive":      true,
			"expiresAt":     bson.M{"$gt": now},
			"usesRemaining": bson.M{"$gte": n},
		},
		bson.M{"$inc": bson.M{"usesRemaining": -n}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&link)
	if err == nil {
		return &link, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// The conditional update missed; re-read to report why.
	err = col.FindOne(ctx, bson.M{"token": token}).Decode(&link)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, classifyMiss(&link, now)
}

// classifyMiss explains why a conditional decrement matched nothing,
// given the link as re-read afterwards. A link that still looks usable
// means a concurrent consumer took the contended use between the two
// reads, which callers see as exhaustion.
func classifyMiss(link *models.AccessLink, now time.Time) error {
	if err := Check(link, now); err != nil {
		return err
	}
	return ErrExhausted
}

// Release gives back n consumed uses. Called when persisting the
// uploaded payload fails after the counter was already decremented.
func Release(ctx context.Context, col *mongo.Collection, id bson.ObjectID, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := col.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"usesRemaining": n}})
	return err
}

// Deactivate kills a link immediately. Takes effect on the next
// Validate/Consume regardless of expiry or remaining uses.
func Deactivate(ctx context.Context, col *mongo.Collection, id bson.ObjectID) error {
	now := time.Now().UTC()
	res, err := col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"isActive": false, "deactivatedAt": now},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
