package repository

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/jmoiron/sqlx"
)

// ListWarehouseManagers returns active admins and managers assigned to the warehouse.
func (r reads) ListWarehouseManagers(ctx context.Context, warehouseID string) ([]CachedUser, error) {
	var users []CachedUser
	query := `
		SELECT user_id, name, email, role_name, warehouse_id, is_active
		FROM user_cache
		WHERE warehouse_id = $1 AND role_name IN ($2, $3) AND is_active
		ORDER BY email`
	if err := sqlx.SelectContext(ctx, r.q, &users, query, warehouseID, actor.RoleAdmin, actor.RoleManager); err != nil {
		return nil, database.MapError(err, "user", "list warehouse managers")
	}
	return users, nil
}

// GetUser returns a cached user
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*CachedUser, error) {
	var u CachedUser
	query := `SELECT user_id, name, email, role_name, warehouse_id, is_active FROM user_cache WHERE user_id = $1`
	if err := s.db.GetContext(ctx, &u, query, userID); err != nil {
		return nil, database.MapError(err, "user", "get cached user")
	}
	return &u, nil
}

// UpsertUser creates or updates a cached user
func (s *PostgresStore) UpsertUser(ctx context.Context, u *CachedUser) error {
	query := `
		INSERT INTO user_cache (user_id, name, email, role_name, warehouse_id, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET name = $2, email = $3, role_name = $4, warehouse_id = $5, is_active = $6, updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, u.UserID, u.Name, u.Email, u.RoleName, u.WarehouseID, u.IsActive)
	return database.MapError(err, "user", "upsert cached user")
}

// DeleteUser deletes a cached user
func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_cache WHERE user_id = $1`, userID)
	return database.MapError(err, "user", "delete cached user")
}
