package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HealthChecker provides health check functionality for the state store
type HealthChecker struct {
	db     *sql.DB
	driver string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, driver string) *HealthChecker {
	return &HealthChecker{db: db, driver: driver}
}

// PingStore checks if the state store connection is healthy
func (h *HealthChecker) PingStore(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return h.db.PingContext(ctx)
}

// CheckDatabaseHealth performs a comprehensive database health check
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if err := h.PingStore(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Check if we can execute a simple query
	var result int
	err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	return nil
}

// GetHealthStatus returns the current health status
func (h *HealthChecker) GetHealthStatus(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
		"checks":    make(map[string]interface{}),
	}

	dbStatus := "ok"
	if err := h.CheckDatabaseHealth(ctx); err != nil {
		dbStatus = "error"
		status["checks"].(map[string]interface{})[h.driver] = map[string]interface{}{
			"status": dbStatus,
			"error":  err.Error(),
		}
	} else {
		status["checks"].(map[string]interface{})[h.driver] = map[string]interface{}{
			"status": dbStatus,
		}
	}

	overallStatus := "ok"
	if dbStatus != "ok" {
		overallStatus = "degraded"
	}
	status["status"] = overallStatus

	return status
}
