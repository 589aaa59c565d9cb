// Package pg connects to PostgreSQL with pgx/v5 and applies goose
// migrations from an embedded filesystem. It backs status.PostgresStore.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, status.Migrations, status.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//	store := status.NewPostgresStore(pool)
package pg
