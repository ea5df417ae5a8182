package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/store"
)

// initStore opens and migrates the configured store. It returns nil, nil
// when persistence is disabled.
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "sourcing.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		if sc.DatabaseURL == "" {
			return nil, eris.New("store: database_url is required for postgres (set SOURCING_STORE_DATABASE_URL)")
		}
		st, err = store.NewPostgres(ctx, sc.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore is initStore for commands that only read persisted runs.
func requireStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := initStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("store is disabled (set store.driver to sqlite or postgres)")
	}
	return st, nil
}
