package accesscontrol

import (
	"context"
	"fmt"

	"trekmap/internal/infra/dbx"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) AssignRole(ctx context.Context, userID int64, role RoleName) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO user_roles (user_id, role_id)
        SELECT $1, id FROM roles WHERE name = $2
        ON CONFLICT DO NOTHING
    `, userID, string(role))
	if err != nil {
		return fmt.Errorf("assign role %s: %w", role, err)
	}
	return nil
}

func (r *Repository) RevokeRole(ctx context.Context, userID int64, role RoleName) error {
	tag, err := r.db.Exec(ctx, `
        DELETE FROM user_roles ur
        USING roles r
        WHERE ur.role_id = r.id AND ur.user_id = $1 AND r.name = $2
    `, userID, string(role))
	if err != nil {
		return fmt.Errorf("revoke role %s: %w", role, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotAssigned
	}
	return nil
}

func (r *Repository) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.db.Query(ctx, `
        SELECT r.id, r.name, r.description, r.created_at, r.updated_at
        FROM roles r
        JOIN user_roles ur ON ur.role_id = r.id
        WHERE ur.user_id = $1
        ORDER BY r.name
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UserHasRole backs the admin guard on moderation routes.
func (r *Repository) UserHasRole(ctx context.Context, userID int64, role RoleName) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
            FROM user_roles ur
            JOIN roles r ON ur.role_id = r.id
            WHERE ur.user_id = $1 AND r.name = $2
        )
    `, userID, string(role)).Scan(&exists)
	return exists, err
}
