// Package migration imports participant history from the previous
// bot's MongoDB so profiles do not start cold after the cutover.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/duskhaven/economy/economy/profile"
)

const connectTimeout = 15 * time.Second

// legacyUser is the shape of the old bot's user documents, reduced to
// the fields the profiler can seed from.
type legacyUser struct {
	DiscordID    string  `bson:"discordid"`
	Exp          float64 `bson:"exp"`
	DailyStats   bson.M  `bson:"dailystats"`
	LastDaily    int64   `bson:"lastdaily"`
	MarketVolume float64 `bson:"marketvolume"`
	MarketCount  int     `bson:"marketcount"`
	TotalSaved   float64 `bson:"vials"`
}

// Importer replays legacy activity into the profiler.
type Importer struct {
	uri        string
	database   string
	collection string
}

func NewImporter(uri, database, collection string) *Importer {
	return &Importer{uri: uri, database: database, collection: collection}
}

// Run connects, streams the legacy users and seeds one profile per
// user. Returns the number of imported profiles.
func (im *Importer) Run(ctx context.Context, profiler *profile.Profiler) (int, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(im.uri))
	if err != nil {
		return 0, fmt.Errorf("failed to connect to legacy database: %w", err)
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			slog.Warn("legacy database disconnect failed", slog.Any("error", err))
		}
	}()

	coll := client.Database(im.database).Collection(im.collection)
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to query legacy users: %w", err)
	}
	defer cursor.Close(ctx)

	imported := 0
	for cursor.Next(ctx) {
		var user legacyUser
		if err := cursor.Decode(&user); err != nil {
			slog.Warn("skipping undecodable legacy user", slog.Any("error", err))
			continue
		}

		id, err := snowflake.Parse(user.DiscordID)
		if err != nil {
			slog.Warn("skipping legacy user with bad id",
				slog.String("discordid", user.DiscordID))
			continue
		}

		im.seed(profiler, id, user)
		imported++
	}
	if err := cursor.Err(); err != nil {
		return imported, fmt.Errorf("legacy user cursor failed: %w", err)
	}

	slog.Info("legacy profile import finished", slog.Int("imported", imported))
	return imported, nil
}

// seed replays the legacy aggregates as synthetic transactions. The
// old schema kept totals, not individual transactions, so market
// volume is replayed as evenly sized market trades.
func (im *Importer) seed(profiler *profile.Profiler, id snowflake.ID, user legacyUser) {
	if user.MarketCount > 0 && user.MarketVolume > 0 {
		per := user.MarketVolume / float64(user.MarketCount)
		for i := 0; i < user.MarketCount; i++ {
			profiler.RecordTransaction(id, per, profile.CategoryMarket)
		}
	} else if user.Exp > 0 {
		profiler.RecordTransaction(id, user.Exp, "general")
	}
	if user.TotalSaved > 0 {
		profiler.RecordSavings(id, user.TotalSaved)
	}
}
