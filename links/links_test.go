package links

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/miravisas/mirabackend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestNewToken(t *testing.T) {
	token, err := NewToken()
	require.NoError(t, err)
	assert.Len(t, token, tokenBytes*2)

	_, err = hex.DecodeString(token)
	assert.NoError(t, err, "token must be hex")

	other, err := NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func activeLink(now time.Time) *models.AccessLink {
	return &models.AccessLink{
		ID:            bson.NewObjectID(),
		Kind:          models.LinkKindDocument,
		ExpiresAt:     now.Add(7 * 24 * time.Hour),
		MaxUses:       3,
		UsesRemaining: 3,
		IsActive:      true,
	}
}

func TestCheckUsableLink(t *testing.T) {
	now := time.Now().UTC()
	assert.NoError(t, Check(activeLink(now), now))
}

func TestCheckExpiry(t *testing.T) {
	now := time.Now().UTC()

	link := activeLink(now)
	link.ExpiresAt = now.Add(time.Minute)
	assert.NoError(t, Check(link, now))

	// the boundary instant itself is already expired
	link.ExpiresAt = now
	assert.ErrorIs(t, Check(link, now), ErrExpired)

	link.ExpiresAt = now.Add(-time.Minute)
	assert.ErrorIs(t, Check(link, now), ErrExpired)
}

func TestCheckExhausted(t *testing.T) {
	now := time.Now().UTC()
	link := activeLink(now)
	link.UsesRemaining = 0
	assert.ErrorIs(t, Check(link, now), ErrExhausted)

	link.UsesRemaining = -1
	assert.ErrorIs(t, Check(link, now), ErrExhausted)
}

func TestCheckDeactivatedDominates(t *testing.T) {
	now := time.Now().UTC()

	link := activeLink(now)
	link.IsActive = false
	assert.ErrorIs(t, Check(link, now), ErrDeactivated)

	// deactivation wins even when the link is also expired and exhausted
	link.ExpiresAt = now.Add(-time.Hour)
	link.UsesRemaining = 0
	assert.ErrorIs(t, Check(link, now), ErrDeactivated)
}

func TestIssueParamsValidation(t *testing.T) {
	valid := IssueParams{
		SubmissionID:  bson.NewObjectID(),
		Kind:          models.LinkKindDocument,
		ExpiresInDays: 7,
		MaxUses:       3,
	}
	assert.NoError(t, valid.validate())

	cases := []struct {
		name   string
		mutate func(*IssueParams)
	}{
		{"zero maxUses", func(p *IssueParams) { p.MaxUses = 0 }},
		{"negative maxUses", func(p *IssueParams) { p.MaxUses = -2 }},
		{"zero expiry", func(p *IssueParams) { p.ExpiresInDays = 0 }},
		{"unknown kind", func(p *IssueParams) { p.Kind = "SHARE" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			assert.ErrorIs(t, p.validate(), ErrInvalidParameter)
		})
	}
}

func TestClassifyMiss(t *testing.T) {
	now := time.Now().UTC()

	link := activeLink(now)
	link.IsActive = false
	assert.ErrorIs(t, classifyMiss(link, now), ErrDeactivated)

	link = activeLink(now)
	link.ExpiresAt = now.Add(-time.Hour)
	assert.ErrorIs(t, classifyMiss(link, now), ErrExpired)

	link = activeLink(now)
	link.UsesRemaining = 0
	assert.ErrorIs(t, classifyMiss(link, now), ErrExhausted)

	// a usable-looking link means another consumer won the race for
	// the last use between the decrement and the re-read
	link = activeLink(now)
	assert.ErrorIs(t, classifyMiss(link, now), ErrExhausted)
}

// raceCollection connects to the database named by MONGODB_URI, or
// skips when none is configured.
func raceCollection(t *testing.T) *mongo.Collection {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	col := client.Database("mirabackend_test").Collection("access_links")
	t.Cleanup(func() { _ = col.Drop(context.Background()) })

	_, err = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	require.NoError(t, err)
	return col
}

func TestConsumeRaceOnSingleUseLink(t *testing.T) {
	ctx := context.Background()
	col := raceCollection(t)

	link, err := Issue(ctx, col, IssueParams{
		SubmissionID:  bson.NewObjectID(),
		Kind:          models.LinkKindDocument,
		ExpiresInDays: 1,
		MaxUses:       1,
	})
	require.NoError(t, err)

	const racers = 8
	now := time.Now().UTC()
	results := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Consume(ctx, col, link.Token, now)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, exhausted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one consumer may claim the last use")
	assert.Equal(t, racers-1, exhausted)

	// the link is spent for later callers too
	_, err = Consume(ctx, col, link.Token, now)
	assert.ErrorIs(t, err, ErrExhausted)
	_, err = Validate(ctx, col, link.Token, now)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestConsumeNAllOrNothing(t *testing.T) {
	ctx := context.Background()
	col := raceCollection(t)

	link, err := Issue(ctx, col, IssueParams{
		SubmissionID:  bson.NewObjectID(),
		Kind:          models.LinkKindDocument,
		ExpiresInDays: 1,
		MaxUses:       3,
	})
	require.NoError(t, err)

	now := time.Now().UTC()

	// asking for more uses than remain must not decrement anything
	_, err = ConsumeN(ctx, col, link.Token, 4, now)
	assert.ErrorIs(t, err, ErrExhausted)

	got, err := ConsumeN(ctx, col, link.Token, 3, now)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsesRemaining)
}

func TestIssueParamsPaymentRequiresAmount(t *testing.T) {
	p := IssueParams{
		SubmissionID:  bson.NewObjectID(),
		Kind:          models.LinkKindPayment,
		ExpiresInDays: 7,
		MaxUses:       1,
	}
	assert.ErrorIs(t, p.validate(), ErrInvalidParameter)

	p.Amount = 499.0
	p.Currency = "EUR"
	assert.NoError(t, p.validate())
}
