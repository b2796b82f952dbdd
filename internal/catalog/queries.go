// File path: internal/catalog/queries.go
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zhupanlab/datadocs/internal/lineage"
	"github.com/zhupanlab/datadocs/internal/provenance"
	"github.com/zhupanlab/datadocs/internal/snapshot"
)

// AuditEvent is one row of the catalog audit trail.
type AuditEvent struct {
	ID          int64     `db:"id" json:"id"`
	RunID       string    `db:"run_id" json:"run_id,omitempty"`
	DataframeID string    `db:"dataframe_id" json:"dataframe_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	Detail      string    `db:"detail" json:"detail,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type dataframeRow struct {
	ID           string         `db:"id"`
	PipelineID   string         `db:"pipeline_id"`
	Name         sql.NullString `db:"name"`
	Description  sql.NullString `db:"description"`
	Columns      sql.NullString `db:"columns"`
	RowCount     int            `db:"row_count"`
	StoragePath  sql.NullString `db:"storage_path"`
	Source       string         `db:"source"`
	Provider     string         `db:"provider"`
	AccessMethod sql.NullString `db:"access_method"`
	CoverageMin  sql.NullTime   `db:"coverage_min"`
	CoverageMax  sql.NullTime   `db:"coverage_max"`
	LastUpdated  time.Time      `db:"last_updated"`
}

type pipelineRow struct {
	ID           string         `db:"id"`
	Title        sql.NullString `db:"title"`
	Developer    sql.NullString `db:"developer"`
	Contributors sql.NullString `db:"contributors"`
	RepoURL      sql.NullString `db:"repo_url"`
	OSTags       sql.NullString `db:"os_tags"`
	LastUpdated  sql.NullTime   `db:"last_updated"`
}

type chartRow struct {
	ID    string         `db:"id"`
	Title sql.NullString `db:"title"`
}

type edgeRow struct {
	Left  string `db:"left_id"`
	Right string `db:"right_id"`
}

// SaveDataframe upserts a dataframe record and ensures the owner edge.
func (s *Store) SaveDataframe(ctx context.Context, record lineage.DataframeRecord) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	columns, err := json.Marshal(record.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	var covMin, covMax interface{}
	if record.Coverage != nil {
		covMin = record.Coverage.Min.UTC()
		covMax = record.Coverage.Max.UTC()
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO dataframes
                        (id, pipeline_id, name, description, columns, row_count, storage_path, source, provider, access_method, coverage_min, coverage_max, last_updated)
                        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                        ON CONFLICT(id) DO UPDATE SET
                                pipeline_id = excluded.pipeline_id,
                                name = excluded.name,
                                description = excluded.description,
                                columns = excluded.columns,
                                row_count = excluded.row_count,
                                storage_path = excluded.storage_path,
                                source = excluded.source,
                                provider = excluded.provider,
                                access_method = excluded.access_method,
                                coverage_min = excluded.coverage_min,
                                coverage_max = excluded.coverage_max,
                                last_updated = excluded.last_updated`,
			record.ID, record.PipelineID, nullIfEmpty(record.Name), nullIfEmpty(record.Description),
			string(columns), record.RowCount, nullIfEmpty(record.StoragePath), record.Source,
			record.Provider, nullIfEmpty(record.AccessMethod), covMin, covMax, record.LastUpdated.UTC()); err != nil {
			return fmt.Errorf("upsert dataframe: %w", err)
		}
		return insertEdge(ctx, tx, "pipeline_dataframes", "pipeline_id", record.PipelineID, record.ID)
	})
}

// SavePipeline upserts a pipeline record and its producer edges.
func (s *Store) SavePipeline(ctx context.Context, record lineage.PipelineRecord) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	contributors, err := json.Marshal(record.Contributors)
	if err != nil {
		return fmt.Errorf("encode contributors: %w", err)
	}
	osTags, err := json.Marshal(record.OSTags)
	if err != nil {
		return fmt.Errorf("encode os tags: %w", err)
	}
	var updated interface{}
	if !record.LastUpdated.IsZero() {
		updated = record.LastUpdated.UTC()
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO pipelines
                        (id, title, developer, contributors, repo_url, os_tags, last_updated)
                        VALUES (?, ?, ?, ?, ?, ?, ?)
                        ON CONFLICT(id) DO UPDATE SET
                                title = excluded.title,
                                developer = excluded.developer,
                                contributors = excluded.contributors,
                                repo_url = excluded.repo_url,
                                os_tags = excluded.os_tags,
                                last_updated = excluded.last_updated`,
			record.ID, nullIfEmpty(record.Title), nullIfEmpty(record.Developer),
			string(contributors), nullIfEmpty(record.RepoURL), string(osTags), updated); err != nil {
			return fmt.Errorf("upsert pipeline: %w", err)
		}
		for _, df := range record.Dataframes {
			if err := insertEdge(ctx, tx, "pipeline_dataframes", "pipeline_id", record.ID, df); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveChart upserts a chart record and its consumer edges.
func (s *Store) SaveChart(ctx context.Context, record lineage.ChartRecord) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO charts (id, title) VALUES (?, ?)
                        ON CONFLICT(id) DO UPDATE SET title = excluded.title`,
			record.ID, nullIfEmpty(record.Title)); err != nil {
			return fmt.Errorf("upsert chart: %w", err)
		}
		for _, df := range record.Dataframes {
			if err := insertEdge(ctx, tx, "chart_dataframes", "chart_id", record.ID, df); err != nil {
				return err
			}
		}
		return nil
	})
}

// LinkPipeline persists a pipeline -> dataframe producer edge.
func (s *Store) LinkPipeline(ctx context.Context, pipelineID, dataframeID string) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return insertEdge(ctx, tx, "pipeline_dataframes", "pipeline_id", pipelineID, dataframeID)
	})
}

// LinkChart persists a chart -> dataframe consumer edge.
func (s *Store) LinkChart(ctx context.Context, chartID, dataframeID string) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return insertEdge(ctx, tx, "chart_dataframes", "chart_id", chartID, dataframeID)
	})
}

// DeleteDataframe removes a dataframe row; incident edges cascade.
func (s *Store) DeleteDataframe(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dataframes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete dataframe: %w", err)
		}
		return nil
	})
}

// RecordAudit appends one event to the audit trail.
func (s *Store) RecordAudit(ctx context.Context, runID, dataframeID, action, detail string) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO audit (run_id, dataframe_id, action, detail) VALUES (?, ?, ?, ?)`,
			nullIfEmpty(runID), nullIfEmpty(dataframeID), action, nullIfEmpty(detail)); err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}
		return nil
	})
}

// AuditTrail returns the most recent audit events for a dataframe, newest
// first. An empty dataframe ID returns events for all dataframes.
func (s *Store) AuditTrail(ctx context.Context, dataframeID string, limit int) ([]AuditEvent, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog store not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, COALESCE(run_id, '') AS run_id, COALESCE(dataframe_id, '') AS dataframe_id,
                action, COALESCE(detail, '') AS detail, created_at
                FROM audit`
	args := []interface{}{}
	if dataframeID != "" {
		query += ` WHERE dataframe_id = ?`
		args = append(args, dataframeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	var events []AuditEvent
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("select audit: %w", err)
	}
	return events, nil
}

// LoadGraph rebuilds an in-memory lineage graph from the catalog tables.
// Edges referencing dataframes that no longer exist cannot occur thanks to
// the cascade constraints, so the rebuilt graph is always consistent.
func (s *Store) LoadGraph(ctx context.Context) (*lineage.Graph, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog store not initialised")
	}
	graph := lineage.NewGraph()

	var dataframes []dataframeRow
	if err := s.db.SelectContext(ctx, &dataframes, `SELECT * FROM dataframes ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select dataframes: %w", err)
	}
	for _, row := range dataframes {
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		if err := graph.RegisterDataframe(record); err != nil {
			return nil, fmt.Errorf("restore dataframe %s: %w", row.ID, err)
		}
	}

	var pipelineEdges []edgeRow
	if err := s.db.SelectContext(ctx, &pipelineEdges, `SELECT pipeline_id AS left_id, dataframe_id AS right_id FROM pipeline_dataframes`); err != nil {
		return nil, fmt.Errorf("select pipeline edges: %w", err)
	}
	for _, edge := range pipelineEdges {
		if err := graph.LinkPipelineToDataframe(edge.Left, edge.Right); err != nil {
			return nil, fmt.Errorf("restore pipeline edge %s -> %s: %w", edge.Left, edge.Right, err)
		}
	}

	var chartEdges []edgeRow
	if err := s.db.SelectContext(ctx, &chartEdges, `SELECT chart_id AS left_id, dataframe_id AS right_id FROM chart_dataframes`); err != nil {
		return nil, fmt.Errorf("select chart edges: %w", err)
	}
	// Replay consumer edges directly so links persisted without a chart
	// record (the bare link path) survive the rebuild.
	chartDeps := make(map[string][]string)
	for _, edge := range chartEdges {
		if err := graph.LinkChartToDataframe(edge.Left, edge.Right); err != nil {
			return nil, fmt.Errorf("restore chart edge %s -> %s: %w", edge.Left, edge.Right, err)
		}
		chartDeps[edge.Left] = append(chartDeps[edge.Left], edge.Right)
	}

	var pipelines []pipelineRow
	if err := s.db.SelectContext(ctx, &pipelines, `SELECT * FROM pipelines ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select pipelines: %w", err)
	}
	for _, row := range pipelines {
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		if err := graph.RegisterPipeline(record); err != nil {
			return nil, fmt.Errorf("restore pipeline %s: %w", row.ID, err)
		}
	}

	var charts []chartRow
	if err := s.db.SelectContext(ctx, &charts, `SELECT * FROM charts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select charts: %w", err)
	}
	for _, row := range charts {
		record := lineage.ChartRecord{ID: row.ID, Title: row.Title.String, Dataframes: chartDeps[row.ID]}
		if err := graph.RegisterChart(record); err != nil {
			return nil, fmt.Errorf("restore chart %s: %w", row.ID, err)
		}
	}
	return graph, nil
}

func (r dataframeRow) toRecord() (lineage.DataframeRecord, error) {
	record := lineage.DataframeRecord{
		ID:           r.ID,
		PipelineID:   r.PipelineID,
		Name:         r.Name.String,
		Description:  r.Description.String,
		RowCount:     r.RowCount,
		StoragePath:  r.StoragePath.String,
		Source:       r.Source,
		Provider:     r.Provider,
		AccessMethod: r.AccessMethod.String,
		LastUpdated:  r.LastUpdated.UTC(),
	}
	if r.Columns.Valid && r.Columns.String != "" {
		var columns []snapshot.Column
		if err := json.Unmarshal([]byte(r.Columns.String), &columns); err != nil {
			return lineage.DataframeRecord{}, fmt.Errorf("decode columns for %s: %w", r.ID, err)
		}
		record.Columns = columns
	}
	if r.CoverageMin.Valid && r.CoverageMax.Valid {
		record.Coverage = &provenance.Interval{Min: r.CoverageMin.Time.UTC(), Max: r.CoverageMax.Time.UTC()}
	}
	return record, nil
}

func (r pipelineRow) toRecord() (lineage.PipelineRecord, error) {
	record := lineage.PipelineRecord{
		ID:        r.ID,
		Title:     r.Title.String,
		Developer: r.Developer.String,
		RepoURL:   r.RepoURL.String,
	}
	if r.LastUpdated.Valid {
		record.LastUpdated = r.LastUpdated.Time.UTC()
	}
	if r.Contributors.Valid && r.Contributors.String != "" {
		if err := json.Unmarshal([]byte(r.Contributors.String), &record.Contributors); err != nil {
			return lineage.PipelineRecord{}, fmt.Errorf("decode contributors for %s: %w", r.ID, err)
		}
	}
	if r.OSTags.Valid && r.OSTags.String != "" {
		if err := json.Unmarshal([]byte(r.OSTags.String), &record.OSTags); err != nil {
			return lineage.PipelineRecord{}, fmt.Errorf("decode os tags for %s: %w", r.ID, err)
		}
	}
	return record, nil
}

func insertEdge(ctx context.Context, tx *sqlx.Tx, table, leftColumn, leftID, dataframeID string) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, dataframe_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, table, leftColumn)
	if _, err := tx.ExecContext(ctx, query, leftID, dataframeID); err != nil {
		return fmt.Errorf("insert %s edge: %w", table, err)
	}
	return nil
}
