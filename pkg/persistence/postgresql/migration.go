package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Tenant, member and external-participant tables
			CREATE TABLE organizations (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE users (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) REFERENCES organizations(id),
				email VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE contacts (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) REFERENCES organizations(id),
				email VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_users_organization_id ON users(organization_id);
			CREATE INDEX idx_contacts_organization_id ON contacts(organization_id);

			-- Flow templates; the authored definition is stored as one JSONB document
			CREATE TABLE flows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				definition JSONB NOT NULL,
				organization_id VARCHAR(255),
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_status ON flows(status);
			CREATE INDEX idx_flows_organization_id ON flows(organization_id);
			CREATE INDEX idx_flows_deleted_at ON flows(deleted_at);

			CREATE TABLE flow_runs (
				id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL REFERENCES flows(id),
				name VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				current_step_index INT NOT NULL DEFAULT 0,
				started_by VARCHAR(255),
				organization_id VARCHAR(255),
				role_assignments JSONB DEFAULT '{}',
				kickoff_data JSONB DEFAULT '{}',
				callback_url TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				last_activity_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flow_runs_flow_id ON flow_runs(flow_id);
			CREATE INDEX idx_flow_runs_status ON flow_runs(status);

			CREATE TABLE step_executions (
				id VARCHAR(255) PRIMARY KEY,
				flow_run_id VARCHAR(255) NOT NULL REFERENCES flow_runs(id) ON DELETE CASCADE,
				step_id VARCHAR(255) NOT NULL,
				step_index INT NOT NULL,
				path VARCHAR(512) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				assigned_to_contact_id VARCHAR(255),
				assigned_to_user_id VARCHAR(255),
				outcome TEXT,
				visit_count INT NOT NULL DEFAULT 0,
				-- at most one assignee kind per execution
				CONSTRAINT step_executions_single_assignee
					CHECK (assigned_to_contact_id IS NULL OR assigned_to_user_id IS NULL)
			);

			CREATE INDEX idx_step_executions_flow_run_id ON step_executions(flow_run_id);
			CREATE INDEX idx_step_executions_status ON step_executions(status);
			CREATE UNIQUE INDEX idx_step_executions_run_step ON step_executions(flow_run_id, path, step_id);

			CREATE TABLE audit_log (
				id VARCHAR(255) PRIMARY KEY,
				flow_run_id VARCHAR(255) NOT NULL,
				action VARCHAR(100) NOT NULL,
				details JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_audit_log_flow_run_id ON audit_log(flow_run_id, created_at);

			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				flow_run_id VARCHAR(255) NOT NULL,
				step_execution_id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				fire_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				fired_at TIMESTAMP WITH TIME ZONE,
				active BOOLEAN NOT NULL DEFAULT true
			);

			CREATE INDEX idx_schedules_fire_at ON schedules(fire_at) WHERE active AND fired_at IS NULL;
			CREATE INDEX idx_schedules_step_execution_id ON schedules(step_execution_id);
		`,
	}
}
