// Package mongo opens the MongoDB connection used by the preferences store.
//
// Configuration comes from MONGODB_* environment variables. New retries the
// initial ping with exponential backoff, and Healthcheck adapts the client
// into a readiness probe.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	prefs := preferences.NewMongoStore(db)
package mongo
