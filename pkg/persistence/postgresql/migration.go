package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				form_id TEXT,
				form_ids TEXT[] NOT NULL DEFAULT '{}',
				trigger_on VARCHAR(50) NOT NULL CHECK (trigger_on IN ('submission', 'approval', 'manual')),
				active BOOLEAN NOT NULL DEFAULT false,
				version INTEGER NOT NULL DEFAULT 1,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_form_trigger ON workflows(form_id, trigger_on) WHERE active;
			CREATE INDEX idx_workflows_form_ids ON workflows USING GIN (form_ids);

			CREATE TABLE workflow_versions (
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				nodes JSONB NOT NULL,
				edges JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, version)
			);
		`,
		2: `
			CREATE TABLE workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				submission_id TEXT,
				current_node_id TEXT,
				step INTEGER NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'waiting_approval', 'completed', 'failed', 'stopped')),
				context JSONB NOT NULL DEFAULT '{}',
				logs JSONB NOT NULL DEFAULT '[]',
				last_outcome JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflow_executions_workflow_id ON workflow_executions(workflow_id);
			CREATE INDEX idx_workflow_executions_status ON workflow_executions(status);
		`,
		3: `
			CREATE TABLE approval_requests (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
				node_id TEXT NOT NULL,
				token CHAR(64) NOT NULL UNIQUE,
				approver_email VARCHAR(255) NOT NULL,
				subject TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				responded_at TIMESTAMP WITH TIME ZONE,
				responded_by TEXT NOT NULL DEFAULT '',
				comment TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_approval_requests_pending_expiry ON approval_requests(expires_at) WHERE status = 'pending';
		`,
		4: `
			CREATE TABLE submissions (
				id TEXT PRIMARY KEY,
				form_id TEXT NOT NULL,
				form JSONB,
				data JSONB NOT NULL DEFAULT '{}',
				submitter JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE email_templates (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				subject TEXT NOT NULL,
				html TEXT NOT NULL
			);
		`,
	}
}
