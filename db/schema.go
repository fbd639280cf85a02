package db

const schemaVersion = 1

const usageSchema = `
CREATE TABLE version (
	version INTEGER NOT NULL
);

-- Usage records; write-only from the server's point of view, read
-- back by the stats command

CREATE TABLE usage (
	app_id VARCHAR,
	mailbox_id VARCHAR,
	side VARCHAR,
	mood VARCHAR,
	closed INTEGER
);
CREATE INDEX idx_usage ON usage (app_id, mood);

CREATE TABLE nameplate_usage (
	app_id VARCHAR,
	nameplate INTEGER,
	allocated INTEGER
);
CREATE INDEX idx_nameplate_usage ON nameplate_usage (app_id);
`
