package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				visibility VARCHAR(50) NOT NULL CHECK (visibility IN ('company', 'team', 'user_exclusion')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_tenant ON flows(tenant_id);
			CREATE INDEX idx_flows_deleted_at ON flows(deleted_at);

			CREATE TABLE steps (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				title VARCHAR(255) NOT NULL,
				color VARCHAR(50) NOT NULL DEFAULT '',
				position INT NOT NULL,
				responsible_kind VARCHAR(20) NOT NULL DEFAULT 'none',
				responsible_id VARCHAR(255),
				step_type VARCHAR(50),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (flow_id, position) DEFERRABLE INITIALLY DEFERRED
			);

			CREATE INDEX idx_steps_tenant_flow ON steps(tenant_id, flow_id);

			CREATE TABLE step_fields (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				step_id UUID NOT NULL REFERENCES steps(id) ON DELETE CASCADE,
				label VARCHAR(255) NOT NULL,
				slug VARCHAR(255),
				field_type VARCHAR(50) NOT NULL,
				required BOOLEAN NOT NULL DEFAULT false,
				position INT NOT NULL DEFAULT 0,
				configuration JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (step_id, slug)
			);

			CREATE INDEX idx_step_fields_tenant_step ON step_fields(tenant_id, step_id);

			CREATE TABLE cards (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				step_id UUID NOT NULL REFERENCES steps(id),
				title VARCHAR(255) NOT NULL,
				field_values JSONB,
				checklists JSONB,
				assigned_to VARCHAR(255),
				assigned_team_id VARCHAR(255),
				contact_id VARCHAR(255),
				position INT NOT NULL DEFAULT 0,
				parent_card_id UUID REFERENCES cards(id),
				status VARCHAR(50) NOT NULL CHECK (status IN ('inprogress', 'completed', 'canceled')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_cards_tenant_flow ON cards(tenant_id, flow_id);
			CREATE INDEX idx_cards_tenant_step ON cards(tenant_id, step_id);
			CREATE INDEX idx_cards_contact ON cards(contact_id);

			CREATE TABLE card_movements (
				seq BIGSERIAL PRIMARY KEY,
				id UUID NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				card_id UUID NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
				from_step_id UUID,
				to_step_id UUID NOT NULL,
				moved_at TIMESTAMP WITH TIME ZONE NOT NULL,
				moved_by VARCHAR(255)
			);

			CREATE INDEX idx_card_movements_card ON card_movements(card_id, seq);

			CREATE TABLE flow_team_access (
				tenant_id VARCHAR(255) NOT NULL,
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				team_id VARCHAR(255) NOT NULL,
				PRIMARY KEY (flow_id, team_id)
			);

			CREATE TABLE flow_user_exclusions (
				tenant_id VARCHAR(255) NOT NULL,
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				user_id VARCHAR(255) NOT NULL,
				PRIMARY KEY (flow_id, user_id)
			);

			CREATE TABLE step_visibility (
				tenant_id VARCHAR(255) NOT NULL,
				step_id UUID NOT NULL REFERENCES steps(id) ON DELETE CASCADE,
				user_id VARCHAR(255) NOT NULL,
				can_view BOOLEAN NOT NULL DEFAULT true,
				can_edit BOOLEAN NOT NULL DEFAULT true,
				PRIMARY KEY (step_id, user_id)
			);

			CREATE TABLE step_automations (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				step_id UUID NOT NULL REFERENCES steps(id) ON DELETE CASCADE,
				target_flow_id UUID NOT NULL,
				target_step_id UUID NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				copy_field_values BOOLEAN NOT NULL DEFAULT false,
				copy_assignment BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_step_automations_step ON step_automations(tenant_id, step_id);

			CREATE TABLE card_events (
				seq BIGSERIAL PRIMARY KEY,
				id UUID NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				card_id UUID NOT NULL,
				contact_id VARCHAR(255),
				kind VARCHAR(50) NOT NULL,
				actor VARCHAR(255),
				payload JSONB,
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_card_events_card ON card_events(tenant_id, card_id, seq);
			CREATE INDEX idx_card_events_contact ON card_events(tenant_id, contact_id);

			CREATE TABLE activities (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				card_id UUID NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
				title VARCHAR(255) NOT NULL,
				notes TEXT NOT NULL DEFAULT '',
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'completed', 'overdue')),
				completed_at TIMESTAMP WITH TIME ZONE,
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_activities_card ON activities(tenant_id, card_id);
			CREATE INDEX idx_activities_due ON activities(status, due_at);
		`,
		2: `
			CREATE TABLE payments (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				card_id UUID NOT NULL,
				amount NUMERIC(14,2) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'confirmed', 'failed')),
				confirmed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_payments_card ON payments(tenant_id, card_id);

			CREATE TABLE teams (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL
			);

			CREATE TABLE team_members (
				tenant_id VARCHAR(255) NOT NULL,
				team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
				user_id VARCHAR(255) NOT NULL,
				PRIMARY KEY (team_id, user_id)
			);

			CREATE TABLE compensation_levels (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				commission_percentage NUMERIC(7,4) NOT NULL,
				effective_from TIMESTAMP WITH TIME ZONE NOT NULL,
				effective_to TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_levels_user ON compensation_levels(tenant_id, user_id, effective_to);

			CREATE TABLE card_items (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				card_id UUID NOT NULL,
				item_id VARCHAR(255) NOT NULL,
				code VARCHAR(255) NOT NULL DEFAULT '',
				amount NUMERIC(14,2) NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_card_items_card ON card_items(tenant_id, card_id);

			CREATE TABLE commission_rules (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				team_id UUID NOT NULL,
				item_id VARCHAR(255),
				code VARCHAR(255),
				percentage NUMERIC(7,4),
				fixed_amount NUMERIC(14,2)
			);

			CREATE INDEX idx_commission_rules_team ON commission_rules(tenant_id, team_id);

			CREATE TABLE commission_calculations (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				payment_id UUID NOT NULL,
				card_id UUID NOT NULL,
				team_id UUID NOT NULL,
				total_amount NUMERIC(14,2) NOT NULL,
				total_distributed_percentage NUMERIC(7,4) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_commission_calculations_card ON commission_calculations(tenant_id, card_id);

			CREATE TABLE commission_distributions (
				id UUID PRIMARY KEY,
				calculation_id UUID NOT NULL REFERENCES commission_calculations(id) ON DELETE CASCADE,
				user_id VARCHAR(255) NOT NULL,
				percentage NUMERIC(7,4) NOT NULL,
				amount NUMERIC(14,2) NOT NULL
			);
		`,
	}
}
