package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL CHECK (type IN ('extraction', 'transformation', 'imaging')),
				is_active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_type ON workflows(type);
			CREATE INDEX idx_workflows_is_active ON workflows(is_active);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE workflow_nodes (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL CHECK (kind IN ('start', 'step')),
				step_type VARCHAR(255),
				label VARCHAR(255),
				config JSONB DEFAULT '{}',
				escape_single_quotes_in_body BOOLEAN NOT NULL DEFAULT false,
				user_response_template TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_workflow_id ON workflow_nodes(workflow_id);
			CREATE INDEX idx_workflow_nodes_step_type ON workflow_nodes(step_type);

			CREATE TABLE workflow_edges (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255) NOT NULL,
				source_handle VARCHAR(255) NOT NULL DEFAULT 'default',
				target_handle VARCHAR(255),
				label VARCHAR(255),
				animated BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_edges_workflow_id ON workflow_edges(workflow_id);
			CREATE INDEX idx_workflow_edges_source ON workflow_edges(source_node_id);
		`,
		2: `
			CREATE TABLE execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id UUID NOT NULL,
				workflow_type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
				current_node_id VARCHAR(255),
				current_node_label VARCHAR(255),
				context_data JSONB DEFAULT '{}',
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_execution_logs_workflow_id ON execution_logs(workflow_id);
			CREATE INDEX idx_execution_logs_status ON execution_logs(status);
			CREATE INDEX idx_execution_logs_started_at ON execution_logs(started_at);

			CREATE TABLE step_logs (
				id VARCHAR(255) PRIMARY KEY,
				execution_log_id VARCHAR(255) NOT NULL REFERENCES execution_logs(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				node_label VARCHAR(255),
				step_type VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('completed', 'skipped', 'failed')),
				input_data JSONB DEFAULT '{}',
				output_data JSONB DEFAULT '{}',
				user_response TEXT,
				error_message TEXT,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_step_logs_execution_log_id ON step_logs(execution_log_id);
			CREATE INDEX idx_step_logs_started_at ON step_logs(started_at);
		`,
		3: `
			CREATE TABLE extraction_groups (
				session_id VARCHAR(255) NOT NULL,
				group_order INTEGER NOT NULL,
				fields JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (session_id, group_order)
			);

			CREATE INDEX idx_extraction_groups_session ON extraction_groups(session_id);
		`,
	}
}
