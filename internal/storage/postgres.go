package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Set pool configuration
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Roadmaps ---

// UpsertRoadmap writes a roadmap graph in a single transaction, replacing
// nodes, exercises, and edges wholesale. Content authoring happens outside
// the engine; this is the ingestion point for loaded definitions.
func (r *PostgresRepository) UpsertRoadmap(ctx context.Context, g *models.RoadmapGraph) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO roadmaps (id, title)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title
	`
	if _, err := tx.Exec(ctx, query, g.ID, g.Title); err != nil {
		return fmt.Errorf("failed to upsert roadmap: %w", err)
	}

	// Replace graph content; completions reference exercises by id only and
	// survive a content update
	if _, err := tx.Exec(ctx, `DELETE FROM roadmap_nodes WHERE roadmap_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM roadmap_edges WHERE roadmap_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}

	for pos, node := range g.Nodes {
		nodeQuery := `
			INSERT INTO roadmap_nodes (id, roadmap_id, label, description, pos_x, pos_y, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := tx.Exec(ctx, nodeQuery,
			node.ID, g.ID, node.Label, node.Description,
			node.Position.X, node.Position.Y, pos,
		)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}

		for i, ex := range node.Exercises {
			exQuery := `
				INSERT INTO exercises (id, node_id, roadmap_id, name, difficulty, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id, node_id) DO UPDATE
				SET name = EXCLUDED.name, difficulty = EXCLUDED.difficulty, sort_order = EXCLUDED.sort_order
			`
			_, err := tx.Exec(ctx, exQuery, ex.ID, node.ID, g.ID, ex.Name, string(ex.Difficulty), i)
			if err != nil {
				return fmt.Errorf("failed to insert exercise %s: %w", ex.ID, err)
			}
		}
	}

	for _, edge := range g.Edges {
		edgeQuery := `
			INSERT INTO roadmap_edges (id, roadmap_id, source_node, target_node)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.Exec(ctx, edgeQuery, edge.ID, g.ID, edge.Source, edge.Target); err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", edge.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit roadmap upsert: %w", err)
	}

	return nil
}

// GetRoadmap retrieves a full roadmap graph by ID. Returns nil, nil when
// the roadmap does not exist.
func (r *PostgresRepository) GetRoadmap(ctx context.Context, id string) (*models.RoadmapGraph, error) {
	var g models.RoadmapGraph

	err := r.pool.QueryRow(ctx, `SELECT id, title FROM roadmaps WHERE id = $1`, id).
		Scan(&g.ID, &g.Title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get roadmap: %w", err)
	}

	nodeQuery := `
		SELECT id, label, description, pos_x, pos_y
		FROM roadmap_nodes
		WHERE roadmap_id = $1
		ORDER BY sort_order ASC
	`
	rows, err := r.pool.Query(ctx, nodeQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var node models.RoadmapNode
		if err := rows.Scan(&node.ID, &node.Label, &node.Description, &node.Position.X, &node.Position.Y); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		g.Nodes = append(g.Nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	for i := range g.Nodes {
		exercises, err := r.getExercises(ctx, g.Nodes[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get exercises for node %s: %w", g.Nodes[i].ID, err)
		}
		g.Nodes[i].Exercises = exercises
	}

	edgeQuery := `
		SELECT id, source_node, target_node
		FROM roadmap_edges
		WHERE roadmap_id = $1
		ORDER BY id ASC
	`
	edgeRows, err := r.pool.Query(ctx, edgeQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge models.RoadmapEdge
		if err := edgeRows.Scan(&edge.ID, &edge.Source, &edge.Target); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.Edges = append(g.Edges, edge)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return &g, nil
}

func (r *PostgresRepository) getExercises(ctx context.Context, nodeID string) ([]models.Exercise, error) {
	query := `
		SELECT id, name, difficulty
		FROM exercises
		WHERE node_id = $1
		ORDER BY sort_order ASC
	`
	rows, err := r.pool.Query(ctx, query, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exercises []models.Exercise
	for rows.Next() {
		var ex models.Exercise
		var difficulty string
		if err := rows.Scan(&ex.ID, &ex.Name, &difficulty); err != nil {
			return nil, err
		}
		ex.Difficulty = models.Difficulty(difficulty)
		exercises = append(exercises, ex)
	}
	return exercises, rows.Err()
}

// ListRoadmaps returns summaries for all roadmaps
func (r *PostgresRepository) ListRoadmaps(ctx context.Context) ([]models.RoadmapSummary, error) {
	query := `
		SELECT r.id, r.title,
		       (SELECT COUNT(*) FROM roadmap_nodes n WHERE n.roadmap_id = r.id),
		       (SELECT COUNT(*) FROM exercises e WHERE e.roadmap_id = r.id)
		FROM roadmaps r
		ORDER BY r.id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roadmaps: %w", err)
	}
	defer rows.Close()

	var summaries []models.RoadmapSummary
	for rows.Next() {
		var s models.RoadmapSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.NodeCount, &s.ExerciseCount); err != nil {
			return nil, fmt.Errorf("failed to scan roadmap summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// DeleteRoadmap deletes a roadmap and its graph content
func (r *PostgresRepository) DeleteRoadmap(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM roadmaps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete roadmap: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("roadmap not found: %s", id)
	}

	return nil
}

// --- Users & completions ---

// UserExists reports whether the user record is present
func (r *PostgresRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

// ExerciseExists reports whether any roadmap node carries the exercise id
func (r *PostgresRepository) ExerciseExists(ctx context.Context, exerciseID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM exercises WHERE id = $1)`, exerciseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check exercise: %w", err)
	}
	return exists, nil
}

// EnsureUser creates the user record if it does not exist
func (r *PostgresRepository) EnsureUser(ctx context.Context, userID string) error {
	query := `
		INSERT INTO users (id, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// GetCompletedExercises returns the user's completed exercise ids
func (r *PostgresRepository) GetCompletedExercises(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT exercise_id
		FROM user_completions
		WHERE user_id = $1
		ORDER BY exercise_id ASC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get completions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// AddCompletion records a completed exercise. Idempotent: completing an
// already-completed exercise is a no-op.
func (r *PostgresRepository) AddCompletion(ctx context.Context, userID, exerciseID string) error {
	query := `
		INSERT INTO user_completions (user_id, exercise_id, completed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, exercise_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID, exerciseID); err != nil {
		return fmt.Errorf("failed to add completion: %w", err)
	}
	return nil
}

// RemoveCompletion deletes a completion record. Idempotent: removing an
// absent record succeeds.
func (r *PostgresRepository) RemoveCompletion(ctx context.Context, userID, exerciseID string) error {
	query := `DELETE FROM user_completions WHERE user_id = $1 AND exercise_id = $2`
	if _, err := r.pool.Exec(ctx, query, userID, exerciseID); err != nil {
		return fmt.Errorf("failed to remove completion: %w", err)
	}
	return nil
}

// --- API Clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt *time.Time
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	client.LastUsedAt = lastUsedAt

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	if _, err := r.pool.Exec(ctx, query, apiKey); err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}
