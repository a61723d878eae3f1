package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				steps JSONB NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			-- Create orchestrator_snapshot table. The orchestration core is
			-- persisted as a single document rewritten in full on every save,
			-- so the table holds exactly one row.
			CREATE TABLE orchestrator_snapshot (
				id SMALLINT PRIMARY KEY CHECK (id = 1),
				document JSONB NOT NULL,
				saved_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
