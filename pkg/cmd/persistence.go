package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hiveplane/hiveplane/pkg/persistence"
	"github.com/hiveplane/hiveplane/pkg/persistence/file"
	"github.com/hiveplane/hiveplane/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence layer by database URL scheme:
// postgres:// and postgresql:// get PostgreSQL, everything else is treated
// as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize PostgreSQL persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
